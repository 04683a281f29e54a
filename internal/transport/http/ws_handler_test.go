package http

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"car-picker/internal/app"
	"car-picker/internal/infra/memory"
	"car-picker/internal/transport/api"
	"car-picker/internal/transport/api/apitest"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

func TestWebSocketAnswerFlow(t *testing.T) {
	quiz := apitest.NewServer()
	defer quiz.Close()
	quiz.Enqueue(apitest.SampleQuestion("q1", 20, 1))

	client, err := api.NewClient(quiz.URL, 0)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	factory := func() *app.Controller {
		return app.NewController(client, memory.NewPrefsStore(), memory.NewHistoryStore(10))
	}
	server := httptest.NewServer(NewRouter(NewWSHandler(factory, zerolog.Nop()), zerolog.Nop()))
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	v := readUntil(t, conn, func(v app.View) bool { return v.Phase == app.PhaseAwaitingSelection })
	if len(v.Options) != 4 {
		t.Fatalf("expected 4 options, got %d", len(v.Options))
	}

	// submitting with nothing selected is refused
	send(t, conn, "submit", nil)
	msgType, raw := readNext(t, conn, "error")
	var e errorPayload
	_ = json.Unmarshal(raw, &e)
	if msgType != "error" || e.Message == "" {
		t.Fatalf("expected error message, got %s %s", msgType, raw)
	}

	send(t, conn, "key", map[string]any{"key": "2"})
	readUntil(t, conn, func(v app.View) bool { return len(v.Options) == 4 && v.Options[1].Selected })

	send(t, conn, "key", map[string]any{"key": "Enter"})
	v = readUntil(t, conn, func(v app.View) bool { return v.Phase == app.PhaseResolved })
	if v.Stats.Attempts != 1 || v.Stats.Correct != 1 || v.Stats.Streak != 1 {
		t.Fatalf("unexpected stats %+v", v.Stats)
	}
	if !v.Options[1].Correct || !v.Options[0].Disabled {
		t.Fatalf("expected option 1 marked correct and options locked, got %+v", v.Options)
	}

	send(t, conn, "bogus", nil)
	readNext(t, conn, "error")
}

func TestHealthz(t *testing.T) {
	server := httptest.NewServer(NewRouter(NewWSHandler(nil, zerolog.Nop()), zerolog.Nop()))
	defer server.Close()

	resp, err := server.Client().Get(server.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	msg := map[string]any{"type": typ}
	if payload != nil {
		msg["payload"] = payload
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

// readNext skips view messages until one of the expected type arrives.
func readNext(t *testing.T, conn *websocket.Conn, expect string) (string, json.RawMessage) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		var msg struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		_ = conn.SetReadDeadline(deadline)
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read json waiting for %s: %v", expect, err)
		}
		if expect == "" || msg.Type == expect {
			return msg.Type, msg.Payload
		}
	}
}

func readUntil(t *testing.T, conn *websocket.Conn, match func(app.View) bool) app.View {
	t.Helper()
	for {
		_, raw := readNext(t, conn, "view")
		var v app.View
		if err := json.Unmarshal(raw, &v); err != nil {
			t.Fatalf("decode view: %v", err)
		}
		if match(v) {
			return v
		}
	}
}
