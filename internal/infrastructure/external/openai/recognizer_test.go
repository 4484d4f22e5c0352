package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubStorage struct {
	files map[string][]byte
}

func (s *stubStorage) Save(ctx context.Context, path string, content []byte) error {
	s.files[path] = content
	return nil
}

func (s *stubStorage) Read(ctx context.Context, path string) ([]byte, error) {
	data, ok := s.files[path]
	if !ok {
		return nil, errors.New("file not found")
	}
	return data, nil
}

func (s *stubStorage) Exists(ctx context.Context, path string) bool {
	_, ok := s.files[path]
	return ok
}

func (s *stubStorage) Delete(ctx context.Context, path string) error {
	delete(s.files, path)
	return nil
}

func (s *stubStorage) GetFullPath(relativePath string) string { return relativePath }

type stubExtractor struct {
	text string
}

func (e *stubExtractor) ExtractText(ctx context.Context, data []byte) (string, error) {
	return e.text, nil
}

func chatServer(t *testing.T, content string, captured *string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if captured != nil && len(req.Messages) > 1 {
			*captured = req.Messages[1].Content
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "gpt-4o-mini",
			"choices": []map[string]interface{}{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]string{"role": "assistant", "content": content},
			}},
		})
	}))
}

func newTestRecognizer(url, text string) *Recognizer {
	storage := &stubStorage{files: map[string][]byte{"invoices/a.pdf": []byte("%PDF")}}
	return NewRecognizer(Config{APIKey: "test", BaseURL: url + "/v1", Model: "gpt-4o-mini"},
		nil, &stubExtractor{text: text}, storage, zap.NewNop())
}

func TestRecognize(t *testing.T) {
	answer := `{"number":"СЧ-118","invoice_date":"2026-03-01","due_date":"2026-03-20",
		"amount_gross":"1 200,00","amount_net":"1000.00","amount_vat":"200",
		"counterparty_name":"ООО Бетон","counterparty_inn":"7701234567",
		"line_items":[{"name":"Бетон М300","quantity":"10","unit":"м3","price":"100","amount":"1000"}],
		"confidence":0.92}`

	var prompt string
	srv := chatServer(t, answer, &prompt)
	defer srv.Close()

	r := newTestRecognizer(srv.URL, "Счет на оплату № СЧ-118")
	result, err := r.Recognize(context.Background(), "invoices/a.pdf")
	require.NoError(t, err)

	assert.Contains(t, prompt, "Счет на оплату № СЧ-118")
	assert.Equal(t, "СЧ-118", result.Number)
	require.NotNil(t, result.DueDate)
	assert.Equal(t, "2026-03-20", result.DueDate.Format("2006-01-02"))
	assert.Equal(t, "1200", result.AmountGross.Decimal.String())
	assert.Equal(t, "7701234567", result.CounterpartyINN)
	require.Len(t, result.LineItems, 1)
	assert.Equal(t, "Бетон М300", result.LineItems[0].RawName)
	assert.InDelta(t, 0.92, result.Confidence, 1e-9)
}

func TestRecognize_MissingDocument(t *testing.T) {
	r := newTestRecognizer("http://127.0.0.1:1", "text")
	_, err := r.Recognize(context.Background(), "invoices/missing.pdf")
	assert.Error(t, err)
}

func TestRecognize_EmptyText(t *testing.T) {
	r := newTestRecognizer("http://127.0.0.1:1", "")
	_, err := r.Recognize(context.Background(), "invoices/a.pdf")
	assert.ErrorContains(t, err, "no text layer")
}

func TestParseRecognition(t *testing.T) {
	t.Run("wrapped in prose", func(t *testing.T) {
		result, err := parseRecognition("Here you go:\n```json\n{\"number\":\"7\",\"note\":\"{braces}\"}\n```")
		require.NoError(t, err)
		assert.Equal(t, "7", result.Number)
	})

	t.Run("bad optional fields are dropped", func(t *testing.T) {
		result, err := parseRecognition(`{"due_date":"20.03.2026","amount_gross":"-5","confidence":3}`)
		require.NoError(t, err)
		assert.Nil(t, result.DueDate)
		assert.False(t, result.AmountGross.Valid)
		assert.Equal(t, 1.0, result.Confidence)
	})

	t.Run("no json", func(t *testing.T) {
		_, err := parseRecognition("sorry")
		assert.Error(t, err)
	})
}

func TestLoadPrompts_KeepsDefaults(t *testing.T) {
	path := t.TempDir() + "/prompts.yaml"
	require.NoError(t, writeFile(path, "recognition:\n  max_tokens: 500\n"))

	prompts, err := LoadPrompts(path)
	require.NoError(t, err)
	assert.Equal(t, 500, prompts.Recognition.MaxTokens)
	assert.Equal(t, defaultSystemPrompt, prompts.Recognition.System)
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}
