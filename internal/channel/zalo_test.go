package channel

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gmatbot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestZalo(t *testing.T, handler http.HandlerFunc) (*Zalo, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	z := NewZalo(ZaloConfig{Token: "test-token", APIBase: srv.URL, Logger: testLogger()})
	return z, srv
}

func TestZaloPoll_ParsesBatch(t *testing.T) {
	z, _ := newTestZalo(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bottest-token/getUpdates" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		io.WriteString(w, `{"ok": true, "result": [
			{"event_name": "message.text.received", "message":
				{"message_id": "102", "date": 1700000002, "text": "ds",
				 "sender": {"id": "u1", "is_bot": false},
				 "chat": {"id": "c1", "chat_type": "private"}}},
			{"event_name": "message.text.received", "message":
				{"message_id": "101", "date": 1700000001, "text": "ps",
				 "sender": {"id": "u2", "is_bot": false},
				 "chat": {"id": "c2", "chat_type": "private"}}}
		]}`)
	})

	msgs, err := z.Poll(context.Background(), 0, time.Second)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	// Batch must come back in ascending sequence order.
	if msgs[0].Seq != 101 || msgs[1].Seq != 102 {
		t.Fatalf("expected seq order [101 102], got [%d %d]", msgs[0].Seq, msgs[1].Seq)
	}
	if msgs[0].Text != "ps" || msgs[0].ChatID != "c2" || msgs[0].SenderID != "u2" {
		t.Fatalf("field mapping mismatch: %+v", msgs[0])
	}
}

func TestZaloPoll_SingleObjectResult(t *testing.T) {
	z, _ := newTestZalo(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"ok": true, "result":
			{"event_name": "message.text.received", "message":
				{"message_id": "7", "date": 1700000000, "text": "cr",
				 "sender": {"id": "u1", "is_bot": false},
				 "chat": {"id": "c1", "chat_type": "private"}}}}`)
	})

	msgs, err := z.Poll(context.Background(), 0, time.Second)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Seq != 7 || msgs[0].Text != "cr" {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
}

func TestZaloPoll_EmptyResult(t *testing.T) {
	for _, result := range []string{`[]`, `{}`, `null`} {
		z, _ := newTestZalo(t, func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"ok": true, "result": `+result+`}`)
		})
		msgs, err := z.Poll(context.Background(), 0, time.Second)
		if err != nil {
			t.Fatalf("result %s: poll: %v", result, err)
		}
		if len(msgs) != 0 {
			t.Fatalf("result %s: expected empty batch, got %d", result, len(msgs))
		}
	}
}

func TestZaloPoll_SendsOffset(t *testing.T) {
	var got map[string]any
	z, _ := newTestZalo(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &got)
		io.WriteString(w, `{"ok": true, "result": []}`)
	})

	if _, err := z.Poll(context.Background(), 42, 30*time.Second); err != nil {
		t.Fatalf("poll: %v", err)
	}
	if got["offset"] != float64(42) {
		t.Fatalf("expected offset=42 in payload, got %v", got["offset"])
	}
	if got["timeout"] != float64(30) {
		t.Fatalf("expected timeout=30 in payload, got %v", got["timeout"])
	}
}

func TestZaloPoll_OmitsZeroOffset(t *testing.T) {
	var got map[string]any
	z, _ := newTestZalo(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &got)
		io.WriteString(w, `{"ok": true, "result": []}`)
	})

	if _, err := z.Poll(context.Background(), 0, time.Second); err != nil {
		t.Fatalf("poll: %v", err)
	}
	if _, ok := got["offset"]; ok {
		t.Fatalf("offset should be omitted at 0, got %v", got["offset"])
	}
}

func TestZaloPoll_AuthError(t *testing.T) {
	z, _ := newTestZalo(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"ok": false, "error_code": 401, "description": "Unauthorized"}`)
	})

	_, err := z.Poll(context.Background(), 0, time.Second)
	if !errors.Is(err, domain.ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
}

func TestZaloPoll_AuthErrorInBody(t *testing.T) {
	// Some deployments answer 200 with ok=false and an auth error_code.
	z, _ := newTestZalo(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"ok": false, "error_code": 403, "description": "Forbidden"}`)
	})

	_, err := z.Poll(context.Background(), 0, time.Second)
	if !errors.Is(err, domain.ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
}

func TestZaloPoll_ServerErrorIsTransient(t *testing.T) {
	z, _ := newTestZalo(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := z.Poll(context.Background(), 0, time.Second)
	if !errors.Is(err, domain.ErrTransient) {
		t.Fatalf("expected ErrTransient, got %v", err)
	}
}

func TestZaloPoll_MalformedBodyIsProtocolError(t *testing.T) {
	z, _ := newTestZalo(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html>gateway page</html>`)
	})

	_, err := z.Poll(context.Background(), 0, time.Second)
	if !errors.Is(err, domain.ErrProtocol) {
		t.Fatalf("expected ErrProtocol, got %v", err)
	}
}

func TestZaloPoll_ConnectionRefusedIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening anymore

	z := NewZalo(ZaloConfig{Token: "t", APIBase: srv.URL, Logger: testLogger()})
	_, err := z.Poll(context.Background(), 0, time.Second)
	if !errors.Is(err, domain.ErrTransient) {
		t.Fatalf("expected ErrTransient, got %v", err)
	}
}

func TestZaloPoll_SkipsNonNumericMessageID(t *testing.T) {
	z, _ := newTestZalo(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"ok": true, "result": [
			{"event_name": "message.text.received", "message":
				{"message_id": "abc", "date": 1, "text": "ps",
				 "sender": {"id": "u", "is_bot": false},
				 "chat": {"id": "c", "chat_type": "private"}}},
			{"event_name": "message.text.received", "message":
				{"message_id": "5", "date": 2, "text": "ds",
				 "sender": {"id": "u", "is_bot": false},
				 "chat": {"id": "c", "chat_type": "private"}}}
		]}`)
	})

	msgs, err := z.Poll(context.Background(), 0, time.Second)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Seq != 5 {
		t.Fatalf("expected only the parseable message, got %+v", msgs)
	}
}

func TestZaloReplyPhoto_SendsPayload(t *testing.T) {
	var gotPath string
	var got map[string]any
	z, _ := newTestZalo(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &got)
		io.WriteString(w, `{"ok": true, "result": {"message_id": "900", "date": 1700000009}}`)
	})

	err := z.ReplyPhoto(context.Background(), "chat-9", "https://host/x.png", "caption here")
	if err != nil {
		t.Fatalf("reply photo: %v", err)
	}
	if gotPath != "/bottest-token/sendPhoto" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if got["chat_id"] != "chat-9" || got["photo_url"] != "https://host/x.png" || got["caption"] != "caption here" {
		t.Fatalf("payload mismatch: %v", got)
	}
}

func TestZaloReplyText_SendsPayload(t *testing.T) {
	var got map[string]any
	z, _ := newTestZalo(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &got)
		io.WriteString(w, `{"ok": true, "result": {"message_id": "901", "date": 1700000010}}`)
	})

	if err := z.ReplyText(context.Background(), "chat-1", "help text"); err != nil {
		t.Fatalf("reply text: %v", err)
	}
	if got["chat_id"] != "chat-1" || got["text"] != "help text" {
		t.Fatalf("payload mismatch: %v", got)
	}
}
