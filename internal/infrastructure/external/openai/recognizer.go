package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Prygunov-Andrei/finance-sub003/internal/application/port"
	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/entity"
)

// maxPromptChars bounds the document text sent to the model
const maxPromptChars = 12000

// Config holds the OpenAI connection settings
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Recognizer implements port.DocumentRecognizer using an OpenAI chat model
type Recognizer struct {
	client    *openai.Client
	model     string
	timeout   time.Duration
	prompts   *PromptConfig
	extractor port.DocumentTextExtractor
	storage   port.FileStorage
	logger    *zap.Logger
}

// NewRecognizer creates a new OpenAI recognizer; prompts may be nil for the defaults
func NewRecognizer(cfg Config, prompts *PromptConfig, extractor port.DocumentTextExtractor, storage port.FileStorage, logger *zap.Logger) *Recognizer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if prompts == nil {
		prompts = DefaultPrompts()
	}
	return &Recognizer{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		timeout:   cfg.Timeout,
		prompts:   prompts,
		extractor: extractor,
		storage:   storage,
		logger:    logger,
	}
}

// Recognize reads a stored document and extracts its invoice fields
func (r *Recognizer) Recognize(ctx context.Context, path string) (*port.RecognitionResult, error) {
	data, err := r.storage.Read(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}

	text, err := r.extractor.ExtractText(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("failed to extract text: %w", err)
	}
	if text == "" {
		return nil, fmt.Errorf("document %s has no text layer", path)
	}
	text = truncate(text, maxPromptChars)

	prompt, err := renderTemplate(r.prompts.Recognition.UserTemplate, struct{ Text string }{text})
	if err != nil {
		return nil, err
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       r.model,
		Temperature: r.prompts.Recognition.Temperature,
		MaxTokens:   r.prompts.Recognition.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: r.prompts.Recognition.System},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		r.logger.Error("OpenAI API call failed", zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI")
	}

	result, err := parseRecognition(resp.Choices[0].Message.Content)
	if err != nil {
		r.logger.Error("Failed to parse OpenAI response", zap.String("path", path), zap.Error(err))
		return nil, err
	}

	r.logger.Info("Document recognized",
		zap.String("path", path),
		zap.Float64("confidence", result.Confidence),
		zap.Int("line_items", len(result.LineItems)))
	return result, nil
}

type recognitionPayload struct {
	Number           string `json:"number"`
	InvoiceDate      string `json:"invoice_date"`
	DueDate          string `json:"due_date"`
	AmountGross      string `json:"amount_gross"`
	AmountNet        string `json:"amount_net"`
	AmountVAT        string `json:"amount_vat"`
	CounterpartyName string `json:"counterparty_name"`
	CounterpartyINN  string `json:"counterparty_inn"`
	LineItems        []struct {
		Name     string `json:"name"`
		Quantity string `json:"quantity"`
		Unit     string `json:"unit"`
		Price    string `json:"price"`
		Amount   string `json:"amount"`
	} `json:"line_items"`
	Confidence float64 `json:"confidence"`
}

// parseRecognition converts the model answer; unparseable optional fields are left unset
func parseRecognition(content string) (*port.RecognitionResult, error) {
	var payload recognitionPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		jsonStr := extractJSON(content)
		if jsonStr == "" {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
		if err := json.Unmarshal([]byte(jsonStr), &payload); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
	}

	result := &port.RecognitionResult{
		Number:           strings.TrimSpace(payload.Number),
		InvoiceDate:      parseOptionalDate(payload.InvoiceDate),
		DueDate:          parseOptionalDate(payload.DueDate),
		AmountGross:      parseAmount(payload.AmountGross),
		AmountNet:        parseAmount(payload.AmountNet),
		AmountVAT:        parseAmount(payload.AmountVAT),
		CounterpartyName: strings.TrimSpace(payload.CounterpartyName),
		CounterpartyINN:  strings.TrimSpace(payload.CounterpartyINN),
		Confidence:       clamp(payload.Confidence),
	}
	for _, item := range payload.LineItems {
		result.LineItems = append(result.LineItems, entity.LineItem{
			RawName:  strings.TrimSpace(item.Name),
			Quantity: parseAmount(item.Quantity),
			Unit:     strings.TrimSpace(item.Unit),
			Price:    parseAmount(item.Price),
			Amount:   parseAmount(item.Amount),
		})
	}
	return result, nil
}

func parseOptionalDate(s string) *time.Time {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	d, err := entity.ParseDate(strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &d
}

// parseAmount accepts "1 234,56" style numbers as printed on Russian invoices
func parseAmount(s string) decimal.NullDecimal {
	s = strings.NewReplacer(" ", "", " ", "", ",", ".").Replace(strings.TrimSpace(s))
	if s == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.NullDecimal{}
	}
	return entity.NullAmount(d)
}

func clamp(confidence float64) float64 {
	switch {
	case confidence < 0:
		return 0
	case confidence > 1:
		return 1
	default:
		return confidence
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	s = s[:max]
	for !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}

// extractJSON returns the first balanced JSON object in content
func extractJSON(content string) string {
	start := strings.IndexByte(content, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(content); i++ {
		c := content[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return content[start : i+1]
			}
		}
	}
	return ""
}

// Verify interface compliance
var _ port.DocumentRecognizer = (*Recognizer)(nil)
