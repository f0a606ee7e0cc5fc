// Package webhook delivers tenant-registered callbacks. Delivery is
// best-effort: one attempt per event per endpoint with a hard
// deadline, results reported back to the caller for logging.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

const (
	deliveryTimeout = 10 * time.Second
	userAgent       = "Booking-System-Webhook/1.0"
	// SignatureHeader carries the HMAC of the body when the endpoint
	// configured a secret.
	SignatureHeader = "X-Webhook-Signature"
)

var deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "webhook_deliveries_total",
	Help: "Webhook delivery attempts by outcome.",
}, []string{"outcome"})

// ValidateURL enforces the egress policy: https anywhere, plain http
// only toward localhost.
func ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	switch u.Scheme {
	case "https":
		return nil
	case "http":
		host := u.Hostname()
		if host == "localhost" || host == "127.0.0.1" {
			return nil
		}
		return errors.New("plain http is allowed only for localhost")
	default:
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
}

// Signature computes the signed-body header value:
// sha256=<hex hmac-sha256(secret, body)>.
func Signature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Target is one registered endpoint.
type Target struct {
	ID     uuid.UUID
	URL    string
	Secret string
}

// Delivery is the outcome of one attempt.
type Delivery struct {
	WebhookID  uuid.UUID
	Success    bool
	StatusCode int
	Error      string
}

type payload struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type Sender struct {
	client *resty.Client
	log    *zap.Logger
}

func NewSender(logger *zap.Logger) *Sender {
	client := resty.New().
		SetTimeout(deliveryTimeout).
		SetHeader("User-Agent", userAgent).
		SetHeader("Content-Type", "application/json")
	return &Sender{client: client, log: logger}
}

// Send posts {"event": ..., "data": ...} to one target. Any 2xx
// counts as delivered.
func (s *Sender) Send(ctx context.Context, target Target, eventType string, data json.RawMessage) Delivery {
	body, err := json.Marshal(payload{Event: eventType, Data: data})
	if err != nil {
		deliveries.WithLabelValues("error").Inc()
		return Delivery{WebhookID: target.ID, Error: err.Error()}
	}

	req := s.client.R().SetContext(ctx).SetBody(body)
	if target.Secret != "" {
		req.SetHeader(SignatureHeader, Signature(target.Secret, body))
	}

	resp, err := req.Post(target.URL)
	if err != nil {
		deliveries.WithLabelValues("error").Inc()
		s.log.Warn("webhook delivery failed",
			zap.String("webhook_id", target.ID.String()),
			zap.Error(err))
		return Delivery{WebhookID: target.ID, Error: err.Error()}
	}

	out := Delivery{WebhookID: target.ID, StatusCode: resp.StatusCode()}
	if resp.IsSuccess() {
		out.Success = true
		deliveries.WithLabelValues("delivered").Inc()
	} else {
		out.Error = fmt.Sprintf("endpoint returned %d", resp.StatusCode())
		deliveries.WithLabelValues("rejected").Inc()
		s.log.Warn("webhook rejected",
			zap.String("webhook_id", target.ID.String()),
			zap.Int("status", resp.StatusCode()))
	}
	return out
}
