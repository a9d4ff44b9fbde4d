package api

import (
	"net/http"
	"strings"

	"github.com/gavinwade12/canLogger/monitor"
	"github.com/gavinwade12/canLogger/protocols/slcan"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

const (
	statusSent    = "sent"
	statusStarted = "started"
	statusStopped = "stopped"

	errSendFailed   = "failed to send"
	errBusFailed    = "failed to change bus state"
	errEmptySend    = "either line or id is required"
	errInvalidFrame = "id must be 1 to 8 hex digits and data whole hex bytes"
)

// sendRequest carries either a raw adapter line or a frame to encode.
type sendRequest struct {
	Line string `json:"line"`
	ID   string `json:"id"`
	Data string `json:"data"`
}

func (r sendRequest) line() (string, error) {
	if r.Line != "" {
		return r.Line, nil
	}
	if r.ID == "" {
		return "", errors.New(errEmptySend)
	}

	cmd := monitor.SavedCommand{ID: r.ID, Data: r.Data}
	if err := cmd.Normalize(); err != nil {
		return "", errors.New(errInvalidFrame)
	}
	return cmd.Line(), nil
}

// statusFor maps a session error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, monitor.ErrSessionClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, monitor.ErrUnknownCommand):
		return http.StatusNotFound
	case errors.Is(err, slcan.ErrUnsupportedBitrate):
		return http.StatusBadRequest
	}
	return http.StatusBadGateway
}

func (h *Handler) send(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	line, err := req.line()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.session.Send(c.Request.Context(), strings.TrimSpace(line)); err != nil {
		h.logAndJSONError(c, statusFor(err), errSendFailed, "send_failed", err, "line", line)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusSent, "line": line})
}

func (h *Handler) getTransmits(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"active":   h.session.ActiveKeys(),
		"commands": h.session.SavedCommands(),
	})
}

func (h *Handler) togglePeriodic(c *gin.Context) {
	key := c.Param("key")
	on, err := h.session.TogglePeriodic(key)
	if err != nil {
		h.logAndJSONError(c, statusFor(err), err.Error(), "tx_toggle_failed", err, "key", key)
		return
	}

	status := statusStopped
	if on {
		status = statusStarted
	}
	c.JSON(http.StatusOK, gin.H{"status": status, "key": key, "active": h.session.ActiveKeys()})
}

func (h *Handler) getMacros(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"macros": h.session.Macros()})
}

func (h *Handler) pressMacro(c *gin.Context) {
	id := c.Param("id")
	handle, err := h.session.PressMacro(id)
	if err != nil {
		h.logAndJSONError(c, statusFor(err), err.Error(), "macro_press_failed", err, "id", id)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusStarted, "id": id, "handle": handle})
}

type busRequest struct {
	Speed int `json:"speed"`
}

func (h *Handler) openBus(c *gin.Context) {
	req := busRequest{Speed: h.session.Config().BusSpeed}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
			return
		}
	}
	if req.Speed == 0 {
		req.Speed = monitor.DefaultBusSpeed
	}

	if err := h.session.OpenBus(c.Request.Context(), req.Speed); err != nil {
		h.logAndJSONError(c, statusFor(err), errBusFailed, "bus_open_failed", err, "speed", req.Speed)
		return
	}
	c.JSON(http.StatusOK, gin.H{"busOpen": true, "speed": req.Speed})
}

func (h *Handler) closeBus(c *gin.Context) {
	if err := h.session.CloseBus(c.Request.Context()); err != nil {
		h.logAndJSONError(c, statusFor(err), errBusFailed, "bus_close_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"busOpen": false})
}
