package http

import (
	"context"
	"encoding/json"
	"net/http"

	"car-picker/internal/app"
	"car-picker/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// SessionFactory creates a fresh quiz session for a connection.
type SessionFactory func() *app.Controller

// WSHandler binds one quiz session to each websocket connection. The page
// sends user actions and receives rendered views.
type WSHandler struct {
	newSession SessionFactory
	log        zerolog.Logger
	upgrader   websocket.Upgrader
}

func NewWSHandler(newSession SessionFactory, log zerolog.Logger) *WSHandler {
	return &WSHandler{
		newSession: newSession,
		log:        log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type selectPayload struct {
	Index int `json:"index"`
}

type keyPayload struct {
	Key string `json:"key"`
}

type playerPayload struct {
	Name string `json:"name"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and runs a quiz session until the socket closes.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	session := h.newSession()
	defer session.Close()
	log := h.log.With().Str("session", session.ID()).Logger()
	log.Info().Str("remote", r.RemoteAddr).Msg("ws session opened")

	views, cancel := session.Subscribe()
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	viewsDone := make(chan struct{})

	// single writer; gorilla connections do not allow concurrent writes
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Warn().Err(err).Msg("ws write failed")
				// keep draining so producers never block
				for range send {
				}
				return
			}
		}
	}()

	go func() {
		defer close(viewsDone)
		for {
			select {
			case v, ok := <-views:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "view", Payload: v}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	ctx, stop := context.WithCancel(r.Context())
	defer stop()

	go func() {
		if err := session.Start(ctx); err != nil {
			log.Warn().Err(err).Msg("session start failed")
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if err := h.dispatch(ctx, session, inbound); err != nil {
			select {
			case send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}:
			case <-writerDone:
			}
		}
	}

	stop()
	close(closeSignals)
	<-viewsDone
	close(send)
	<-writerDone
	log.Info().Msg("ws session closed")
}

func (h *WSHandler) dispatch(ctx context.Context, session *app.Controller, msg inboundMessage) error {
	switch msg.Type {
	case "select":
		var p selectPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return errInvalidPayload
		}
		return session.Select(p.Index)
	case "key":
		var p keyPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return errInvalidPayload
		}
		if p.Key == "Enter" {
			return session.Submit(ctx)
		}
		if idx, ok := app.OptionIndexForKey(p.Key); ok {
			return session.Select(idx)
		}
		return nil
	case "submit":
		return session.Submit(ctx)
	case "retry":
		return session.Retry(ctx)
	case "next":
		return session.Next(ctx)
	case "leaderboard":
		return session.RefreshLeaderboard(ctx)
	case "theme":
		return session.ToggleTheme(ctx)
	case "player":
		var p playerPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return errInvalidPayload
		}
		return session.SetPlayer(ctx, p.Name)
	case "settings":
		var s domain.Settings
		if err := json.Unmarshal(msg.Payload, &s); err != nil {
			return errInvalidPayload
		}
		return session.UpdateSettings(ctx, s)
	default:
		return errUnsupported
	}
}
