package lark

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Prygunov-Andrei/finance-sub003/internal/application/port"
)

type larkServer struct {
	mu       sync.Mutex
	messages []map[string]string
	code     int
}

func (s *larkServer) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/open-apis/auth/v3/tenant_access_token/internal", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"code": 0, "msg": "ok", "tenant_access_token": "t-test", "expire": 7200,
		})
	})
	mux.HandleFunc("/open-apis/im/v1/messages", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		body["receive_id_type"] = r.URL.Query().Get("receive_id_type")

		s.mu.Lock()
		s.messages = append(s.messages, body)
		code := s.code
		s.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"code": code, "msg": "ok", "data": map[string]string{"message_id": "om_1"},
		})
	})
	return mux
}

func newTestNotifier(t *testing.T, s *larkServer) *Notifier {
	srv := httptest.NewServer(s.handler(t))
	t.Cleanup(srv.Close)

	client := NewSDKClient(Config{AppID: "cli_test", AppSecret: "secret", BaseURL: srv.URL})
	return NewNotifier(client, "oc_chat", zap.NewNop())
}

func TestNotifier_Notify(t *testing.T) {
	s := &larkServer{}
	n := newTestNotifier(t, s)

	err := n.Notify(context.Background(), port.Notification{
		Title:     "Invoice rejected",
		Body:      "Reason: wrong amount",
		InvoiceID: "INV1",
	})
	require.NoError(t, err)

	require.Len(t, s.messages, 1)
	msg := s.messages[0]
	assert.Equal(t, "chat_id", msg["receive_id_type"])
	assert.Equal(t, "oc_chat", msg["receive_id"])
	assert.Equal(t, "text", msg["msg_type"])

	var content map[string]string
	require.NoError(t, json.Unmarshal([]byte(msg["content"]), &content))
	assert.Equal(t, "Invoice rejected\nReason: wrong amount\nInvoice: INV1", content["text"])
}

func TestNotifier_APIFailure(t *testing.T) {
	s := &larkServer{code: 230002}
	n := newTestNotifier(t, s)

	err := n.Notify(context.Background(), port.Notification{Title: "x"})
	assert.ErrorContains(t, err, "code=230002")
}

func TestNotifier_EmptyChat(t *testing.T) {
	n := NewNotifier(NewSDKClient(Config{AppID: "a", AppSecret: "b"}), "", nil)
	assert.Error(t, n.Notify(context.Background(), port.Notification{Title: "x"}))
}

func TestConfig_Enabled(t *testing.T) {
	assert.False(t, Config{AppID: "a", AppSecret: "b"}.Enabled())
	assert.True(t, Config{AppID: "a", AppSecret: "b", ChatID: "c"}.Enabled())
}
