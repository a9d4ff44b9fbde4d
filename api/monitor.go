package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	statusOK = "ok"

	errInvalidBodyPref = "invalid body: "
	errUnknownGraph    = "unknown graph"
)

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  statusOK,
		"session": h.session.IsOpen(),
		"busOpen": h.session.BusOpen(),
	})
}

func (h *Handler) getMessages(c *gin.Context) {
	msgs := h.session.Messages()
	c.JSON(http.StatusOK, gin.H{
		"count":    len(msgs),
		"messages": msgs,
	})
}

func (h *Handler) getRules(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rules": h.session.Rules()})
}

func (h *Handler) getLog(c *gin.Context) {
	state := h.session.LoggingState()
	lines := h.session.History()
	c.JSON(http.StatusOK, gin.H{
		"active": state.Active(),
		"paused": state.Paused(),
		"count":  len(lines),
		"lines":  lines,
	})
}

func (h *Handler) clearLog(c *gin.Context) {
	h.session.ClearHistory()
	c.Status(http.StatusNoContent)
}

type importLogRequest struct {
	Lines []string `json:"lines" binding:"required"`
}

func (h *Handler) importLog(c *gin.Context) {
	var req importLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	n := h.session.ImportHistory(req.Lines)
	c.JSON(http.StatusOK, gin.H{"count": n})
}

// Pointers so either flag can be left out.
type logStateRequest struct {
	Active *bool `json:"active"`
	Paused *bool `json:"paused"`
}

func (h *Handler) setLogState(c *gin.Context) {
	var req logStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	if req.Active != nil {
		h.session.SetLogging(*req.Active)
	}
	if req.Paused != nil {
		h.session.SetPaused(*req.Paused)
	}

	state := h.session.LoggingState()
	c.JSON(http.StatusOK, gin.H{"active": state.Active(), "paused": state.Paused()})
}

func (h *Handler) getConsole(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"lines": h.session.ConsoleLines()})
}

func (h *Handler) clearConsole(c *gin.Context) {
	h.session.ClearConsole()
	c.Status(http.StatusNoContent)
}

func (h *Handler) getGraphs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"graphs": h.session.Graphs()})
}

func (h *Handler) getGraph(c *gin.Context) {
	g, ok := h.session.Graph(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": errUnknownGraph})
		return
	}

	samples := h.session.GraphSamples(g.ID)
	resp := gin.H{
		"graph":   g,
		"samples": samples,
	}
	if n := len(samples); n > 0 {
		resp["value"] = samples[n-1]
		resp["scaled"] = g.Scale(samples[n-1])
	}
	c.JSON(http.StatusOK, resp)
}
