package sink

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/meiking/cpu-anomaly-monitor/pkg/common"
	"github.com/meiking/cpu-anomaly-monitor/pkg/config"
)

// FeishuSink posts alerts as text messages to a Feishu custom bot webhook
type FeishuSink struct {
	webhookURL string
	secret     string
	httpClient *http.Client
	now        func() time.Time
}

// Feishu bot request structure
type feishuMessage struct {
	Timestamp string        `json:"timestamp,omitempty"`
	Sign      string        `json:"sign,omitempty"`
	MsgType   string        `json:"msg_type"`
	Content   feishuContent `json:"content"`
}

type feishuContent struct {
	Text string `json:"text"`
}

// Feishu bot response structure
type feishuResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// NewFeishuSink creates a new Feishu sink
func NewFeishuSink(cfg config.FeishuConfig) (*FeishuSink, error) {
	if cfg.WebhookURL == "" {
		return nil, errors.New("feishu webhook_url is required")
	}
	return &FeishuSink{
		webhookURL: cfg.WebhookURL,
		secret:     cfg.Secret,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		now:        time.Now,
	}, nil
}

// Name returns the sink name
func (s *FeishuSink) Name() string { return "feishu" }

// Write sends the formatted alert, signed when a secret is configured
func (s *FeishuSink) Write(ctx context.Context, alert common.Alert) error {
	if len(alert.Readings) == 0 {
		return nil // Nothing to send
	}

	msg := feishuMessage{
		MsgType: "text",
		Content: feishuContent{Text: FormatMessage(alert.Readings)},
	}
	if s.secret != "" {
		ts := strconv.FormatInt(s.now().Unix(), 10)
		sign, err := feishuSign(ts, s.secret)
		if err != nil {
			return &common.NotifyError{Op: "feishu sign", Err: err}
		}
		msg.Timestamp = ts
		msg.Sign = sign
	}

	body, err := postJSON(ctx, s.httpClient, s.webhookURL, msg)
	if err != nil {
		return notifyError("feishu", err)
	}

	// Feishu reports application errors with HTTP 200 and a non-zero code
	var resp feishuResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return &common.NotifyError{Op: "feishu", Err: fmt.Errorf("decode response: %w", err)}
	}
	if resp.Code != 0 {
		return &common.NotifyError{Op: "feishu", Err: fmt.Errorf("%s (code: %d)", resp.Msg, resp.Code)}
	}

	return nil
}

// Close cleans up resources
func (s *FeishuSink) Close() error {
	// No resources to clean up for Feishu sink
	return nil
}

// feishuSign computes the bot signature: HMAC-SHA256 keyed with
// "timestamp\nsecret" over an empty message, base64 encoded.
func feishuSign(timestamp, secret string) (string, error) {
	h := hmac.New(sha256.New, []byte(timestamp+"\n"+secret))
	if _, err := h.Write(nil); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(h.Sum(nil)), nil
}
