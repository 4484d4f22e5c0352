package openai

import (
	"bytes"
	"fmt"
	"os"
	"text/template"

	"gopkg.in/yaml.v3"
)

// PromptConfig holds the recognition prompt and model parameters
type PromptConfig struct {
	Recognition struct {
		Temperature  float32 `yaml:"temperature"`
		MaxTokens    int     `yaml:"max_tokens"`
		System       string  `yaml:"system"`
		UserTemplate string  `yaml:"user_template"`
	} `yaml:"recognition"`
}

const defaultSystemPrompt = `You extract payable invoice data from the text of a scanned or digital invoice issued to a Russian construction company.
Respond with a single JSON object and nothing else.`

const defaultUserTemplate = `Extract the invoice fields from the document text below.

Return JSON with these keys:
- "number": invoice number as printed
- "invoice_date", "due_date": dates as YYYY-MM-DD, empty when absent
- "amount_gross", "amount_net", "amount_vat": decimal strings with a dot separator, empty when absent
- "counterparty_name", "counterparty_inn": the supplier
- "line_items": array of {"name", "quantity", "unit", "price", "amount"}
- "confidence": number from 0 to 1 describing how sure you are

Document text:
{{.Text}}`

// DefaultPrompts returns the built-in recognition prompt
func DefaultPrompts() *PromptConfig {
	p := &PromptConfig{}
	p.Recognition.Temperature = 0
	p.Recognition.MaxTokens = 2000
	p.Recognition.System = defaultSystemPrompt
	p.Recognition.UserTemplate = defaultUserTemplate
	return p
}

// LoadPrompts loads prompt configuration from YAML file.
// Keys missing from the file keep their defaults.
func LoadPrompts(promptsPath string) (*PromptConfig, error) {
	data, err := os.ReadFile(promptsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts file: %w", err)
	}

	prompts := DefaultPrompts()
	if err := yaml.Unmarshal(data, prompts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prompts: %w", err)
	}

	return prompts, nil
}

// renderTemplate renders a template with provided data
func renderTemplate(templateStr string, data interface{}) (string, error) {
	tmpl, err := template.New("prompt").Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}
