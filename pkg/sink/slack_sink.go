package sink

import (
	"context"
	"errors"
	"net/http"

	"github.com/meiking/cpu-anomaly-monitor/pkg/common"
	"github.com/meiking/cpu-anomaly-monitor/pkg/config"
)

// SlackSink posts alerts to a Slack incoming webhook
type SlackSink struct {
	webhookURL string
	httpClient *http.Client
}

type slackPayload struct {
	Text string `json:"text"`
}

// NewSlackSink creates a new Slack sink
func NewSlackSink(cfg config.SlackConfig) (*SlackSink, error) {
	if cfg.WebhookURL == "" {
		return nil, errors.New("slack webhook_url is required")
	}
	return &SlackSink{
		webhookURL: cfg.WebhookURL,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}, nil
}

// Name returns the sink name
func (s *SlackSink) Name() string { return "slack" }

// Write sends the formatted alert as a single {"text": ...} message
func (s *SlackSink) Write(ctx context.Context, alert common.Alert) error {
	if len(alert.Readings) == 0 {
		return nil // Nothing to send
	}

	_, err := postJSON(ctx, s.httpClient, s.webhookURL, slackPayload{Text: FormatMessage(alert.Readings)})
	if err != nil {
		return notifyError("slack", err)
	}
	return nil
}

// Close cleans up resources
func (s *SlackSink) Close() error {
	// No resources to clean up for Slack sink
	return nil
}

func notifyError(op string, err error) error {
	ne := &common.NotifyError{Op: op, Err: err}
	var se *statusError
	if errors.As(err, &se) {
		ne.StatusCode = se.code
	}
	return ne
}
