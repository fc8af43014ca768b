package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	apperrors "github.com/mindlab-sim/mindlab/internal/errors"
	"github.com/mindlab-sim/mindlab/internal/simulation/event"
)

type wsEvent struct {
	Type      string         `json:"type"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

type wsClientFrame struct {
	Type string `json:"type"`
}

type wsErrorEnvelope struct {
	Error wsError `json:"error"`
}

type wsError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// wsPeer serializes frame writes from the event pump and the pong replies.
type wsPeer struct {
	mu      sync.Mutex
	encoder *json.Encoder
}

func newWSPeer(encoder *json.Encoder) *wsPeer {
	return &wsPeer{encoder: encoder}
}

func (p *wsPeer) writeEvent(evt wsEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.encoder.Encode(evt)
}

func (p *wsPeer) writeError(code apperrors.Code, message string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.encoder.Encode(wsErrorEnvelope{Error: wsError{Code: string(code), Message: message}})
}

// streamEvents upgrades the connection and pumps the session's event
// stream to the client until disconnect or session delete.
func (h *handler) streamEvents(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.handleWSConn(conn)
	}).ServeHTTP(w, r)
}

func (h *handler) handleWSConn(conn *websocket.Conn) {
	defer func() {
		_ = conn.Close()
	}()

	peer := newWSPeer(json.NewEncoder(conn))

	id := ""
	if request := conn.Request(); request != nil {
		id = request.PathValue("id")
	}
	if _, err := h.reg.Get(id); err != nil {
		_ = peer.writeError(apperrors.CodeOf(err), err.Error())
		return
	}

	// Subscribe before confirming so no event between the two is missed.
	sub := h.reg.Hub().Subscribe(id)
	defer sub.Cancel()

	if err := peer.writeEvent(wsEvent{
		Type:      event.TypeConnectionEstablished,
		Data:      map[string]any{"simulation_id": id},
		Timestamp: time.Now().UTC(),
	}); err != nil {
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for evt := range sub.C {
			if err := peer.writeEvent(wsEvent{Type: evt.Type, Data: evt.Data, Timestamp: evt.Timestamp}); err != nil {
				return
			}
		}
		// The subscription closed (session deleted or subscriber dropped);
		// closing the connection unblocks the client reader below.
		_ = conn.Close()
	}()

	decoder := json.NewDecoder(conn)
	for {
		var frame wsClientFrame
		if err := decoder.Decode(&frame); err != nil {
			break
		}
		if frame.Type == "ping" {
			if err := peer.writeEvent(wsEvent{Type: "pong", Timestamp: time.Now().UTC()}); err != nil {
				break
			}
		}
	}

	// Client side is gone; stop the pump.
	sub.Cancel()
	<-done
}
