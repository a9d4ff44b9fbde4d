package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gavinwade12/canLogger/monitor"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Limits of the /ws snapshot stream.
const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
	wsReadLimit  = 512

	defaultInterval = 150 * time.Millisecond
	minInterval     = 10 * time.Millisecond
	maxInterval     = 10 * time.Second
)

// snapshot is what a display needs to redraw.
type snapshot struct {
	Messages []monitor.CachedMessage `json:"messages"`
	Log      []string                `json:"log"`
	ActiveTx []string                `json:"activeTx"`
	BusOpen  bool                    `json:"busOpen"`
}

type snapshotEnvelope struct {
	Type string   `json:"type"`
	Data snapshot `json:"data"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// streamInterval reads the refresh period from ?interval= (a Go duration such
// as 200ms). Missing or out of range values give defaultInterval.
func streamInterval(raw string) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d < minInterval || d > maxInterval {
		return defaultInterval
	}
	return d
}

// snapshotStream pushes a snapshot every tick, skipping ticks where nothing
// a display shows has changed since the last push.
type snapshotStream struct {
	h    *Handler
	conn *websocket.Conn
	last []byte
}

func (h *Handler) streamSnapshots(c *gin.Context) {
	interval := streamInterval(c.Query("interval"))

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warnw("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	conn.SetReadLimit(wsReadLimit)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	// The peer never sends anything we use; reading only surfaces control
	// frames and the close.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	st := &snapshotStream{h: h, conn: conn}
	refresh := time.NewTicker(interval)
	defer refresh.Stop()
	keepalive := time.NewTicker(wsPingPeriod)
	defer keepalive.Stop()

	for err == nil {
		err = st.push()
		if err != nil {
			break
		}
		select {
		case <-gone:
			return
		case <-c.Request.Context().Done():
			return
		case <-keepalive.C:
			err = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
		case <-refresh.C:
		}
	}
	h.log.Debugw("snapshot stream ended", "err", err)
}

// push writes the current snapshot unless it matches the previous one.
func (st *snapshotStream) push() error {
	s := st.h.session
	payload, err := json.Marshal(snapshotEnvelope{
		Type: "snapshot",
		Data: snapshot{
			Messages: s.Messages(),
			Log:      s.History(),
			ActiveTx: s.ActiveKeys(),
			BusOpen:  s.BusOpen(),
		},
	})
	if err != nil {
		return err
	}
	if bytes.Equal(payload, st.last) {
		return nil
	}
	st.last = payload

	st.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return st.conn.WriteMessage(websocket.TextMessage, payload)
}
