package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kilianp07/teamalloc/core/events"
	"github.com/kilianp07/teamalloc/core/model"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 20 * time.Second
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

// eventMessage is the JSON form of a RunEvent sent to stream clients.
type eventMessage struct {
	Type        events.Type  `json:"type"`
	RunID       string       `json:"run_id"`
	Source      string       `json:"source,omitempty"`
	Teams       []model.Team `json:"teams,omitempty"`
	Stations    int          `json:"stations,omitempty"`
	Fallbacks   int          `json:"fallbacks,omitempty"`
	DurationMS  int64        `json:"duration_ms,omitempty"`
	StationCode string       `json:"station,omitempty"`
	FromTeam    string       `json:"from,omitempty"`
	ToTeam      string       `json:"to,omitempty"`
	TeamID      string       `json:"team_id,omitempty"`
	Locked      bool         `json:"locked,omitempty"`
	Error       string       `json:"error,omitempty"`
	Time        time.Time    `json:"time"`
}

func newEventMessage(ev events.RunEvent) eventMessage {
	m := eventMessage{
		Type:        ev.Type,
		RunID:       ev.RunID,
		Source:      ev.Source,
		Teams:       ev.Teams,
		Stations:    ev.Stations,
		Fallbacks:   ev.Fallbacks,
		DurationMS:  ev.Duration.Milliseconds(),
		StationCode: ev.StationCode,
		FromTeam:    ev.FromTeam,
		ToTeam:      ev.ToTeam,
		TeamID:      ev.TeamID,
		Locked:      ev.Locked,
		Time:        ev.Time,
	}
	if ev.Err != nil {
		m.Error = ev.Err.Error()
	}
	return m
}

// streamEvents upgrades to a WebSocket and forwards run events until the
// client goes away. ?run_id= restricts the stream to one run.
func (h *handler) streamEvents(w http.ResponseWriter, r *http.Request) {
	if h.bus == nil {
		writeError(w, http.StatusNotFound, "event stream is disabled")
		return
	}
	runID := r.URL.Query().Get("run_id")
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	sub := h.bus.Subscribe()
	defer h.bus.Unsubscribe(sub)

	// The read loop only handles control frames and detects disconnects.
	gone := make(chan struct{})
	conn.SetReadLimit(1 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(pongWait)) })
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-sub:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
				return
			}
			if runID != "" && ev.RunID != runID {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(newEventMessage(ev)); err != nil {
				h.log.Debugf("event stream write: %v", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
