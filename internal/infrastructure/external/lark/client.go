package lark

import (
	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"go.uber.org/zap"
)

// Config holds Lark client configuration
type Config struct {
	AppID     string
	AppSecret string
	ChatID    string // Group chat receiving operator notifications
	BaseURL   string // Overrides the open platform domain, empty for the default
}

// NewSDKClient creates a new Lark SDK client
func NewSDKClient(cfg Config) *lark.Client {
	opts := []lark.ClientOptionFunc{
		lark.WithLogLevel(larkcore.LogLevelInfo),
		lark.WithEnableTokenCache(true),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, lark.WithOpenBaseUrl(cfg.BaseURL))
	}
	return lark.NewClient(cfg.AppID, cfg.AppSecret, opts...)
}

// Enabled reports whether credentials are configured
func (c Config) Enabled() bool {
	return c.AppID != "" && c.AppSecret != "" && c.ChatID != ""
}

func newLogger(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger.Named("lark")
}
