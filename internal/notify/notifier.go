package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/spayyavula/campuspandit-sub007/internal/models"
	"github.com/spayyavula/campuspandit-sub007/pkg/config"
)

// Message is one reminder delivery request handed to a transport.
type Message struct {
	ReminderID string               `json:"reminder_id"`
	SessionID  string               `json:"session_id"`
	UserID     string               `json:"user_id"`
	Type       models.ReminderType  `json:"reminder_type"`
	Channel    models.Channel       `json:"channel"`
	Subject    string               `json:"subject"`
	StartsAt   time.Time            `json:"starts_at"`
	Timezone   string               `json:"timezone"`
}

// Notifier delivers reminder messages over some transport.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// WebhookNotifier posts messages as JSON to a delivery endpoint, typically
// the platform's notification fan-out service.
type WebhookNotifier struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// NewWebhookNotifier builds the transport from config.
func NewWebhookNotifier(cfg config.NotifyConfig, logger *zap.Logger) *WebhookNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookNotifier{
		url:    cfg.WebhookURL,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Send implements Notifier.
func (n *WebhookNotifier) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal reminder message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build reminder request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver reminder: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("reminder endpoint returned %d", resp.StatusCode)
	}
	n.logger.Debug("reminder delivered",
		zap.String("reminder_id", msg.ReminderID),
		zap.String("channel", string(msg.Channel)))
	return nil
}

// NopNotifier swallows messages. Used when no delivery endpoint is
// configured and in tests.
type NopNotifier struct{}

// Send implements Notifier.
func (NopNotifier) Send(context.Context, Message) error { return nil }
