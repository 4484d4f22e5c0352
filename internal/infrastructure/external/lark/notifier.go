package lark

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"

	"github.com/Prygunov-Andrei/finance-sub003/internal/application/port"
)

// Notifier posts operator notifications to a Lark group chat
type Notifier struct {
	client *lark.Client
	chatID string
	logger *zap.Logger
}

// NewNotifier creates a notifier sending text messages to chatID
func NewNotifier(client *lark.Client, chatID string, logger *zap.Logger) *Notifier {
	return &Notifier{
		client: client,
		chatID: chatID,
		logger: newLogger(logger),
	}
}

// Notify sends the notification as a plain text message
func (n *Notifier) Notify(ctx context.Context, msg port.Notification) error {
	if n.chatID == "" {
		return fmt.Errorf("chat id cannot be empty")
	}

	content, err := json.Marshal(map[string]string{"text": formatText(msg)})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType("chat_id").
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(n.chatID).
			MsgType("text").
			Content(string(content)).
			Build()).
		Build()

	resp, err := n.client.Im.Message.Create(ctx, req)
	if err != nil {
		n.logger.Error("Failed to send message",
			zap.String("chat_id", n.chatID),
			zap.String("invoice_id", msg.InvoiceID),
			zap.Error(err))
		return fmt.Errorf("failed to send message: %w", err)
	}

	if !resp.Success() {
		n.logger.Error("API returned failure",
			zap.String("chat_id", n.chatID),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}
	n.logger.Info("Notification sent",
		zap.String("message_id", messageID),
		zap.String("invoice_id", msg.InvoiceID))
	return nil
}

func formatText(msg port.Notification) string {
	var sb strings.Builder
	sb.WriteString(msg.Title)
	if msg.Body != "" {
		sb.WriteString("\n")
		sb.WriteString(msg.Body)
	}
	if msg.InvoiceID != "" {
		sb.WriteString("\nInvoice: ")
		sb.WriteString(msg.InvoiceID)
	}
	return sb.String()
}

// Verify interface compliance
var _ port.Notifier = (*Notifier)(nil)
