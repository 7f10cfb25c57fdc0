package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/guardline/aegis/internal/clock"
	"github.com/guardline/aegis/internal/config"
	"github.com/guardline/aegis/internal/observability/metrics"
	"github.com/guardline/aegis/internal/payment/domain"
	"go.uber.org/zap"
)

// SignatureHeader carries the provider's signed timestamp and digest,
// in the form "t=<unix>,v1=<hex hmac>".
const SignatureHeader = "Gateway-Signature"

// signatureTolerance bounds how stale a signed timestamp may be.
const signatureTolerance = 5 * time.Minute

// ProcessorService is the event-application side the verifier hands off to.
type ProcessorService interface {
	ProcessEvent(ctx context.Context, event *domain.WebhookEvent) (domain.Outcome, error)
}

// Service verifies webhook authenticity before anything else touches the
// payload, then parses the provider envelope and hands the normalized
// event to the reconciler.
type Service struct {
	secret    []byte
	log       *zap.Logger
	clock     clock.Clock
	processor ProcessorService
}

func New(cfg config.Config, log *zap.Logger, clk clock.Clock, processor ProcessorService) *Service {
	return &Service{
		secret:    []byte(cfg.Gateway.WebhookSecret),
		log:       log.Named("payment.webhook"),
		clock:     clk,
		processor: processor,
	}
}

// IngestWebhook verifies the signature over the raw body, parses the
// envelope, and applies the event. Callers must pass the body exactly as
// received: re-serialized JSON breaks the digest.
func (s *Service) IngestWebhook(ctx context.Context, payload []byte, headers http.Header) (domain.Outcome, error) {
	if err := s.verifySignature(payload, headers.Get(SignatureHeader)); err != nil {
		metrics.IncInvalidSignature()
		s.log.Warn("webhook rejected, bad signature")
		return "", err
	}

	event, err := parseEnvelope(payload)
	if err != nil {
		return "", err
	}
	return s.processor.ProcessEvent(ctx, event)
}

func (s *Service) verifySignature(payload []byte, header string) error {
	if len(s.secret) == 0 {
		return domain.ErrInvalidSignature
	}

	var timestamp, digest string
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			timestamp = value
		case "v1":
			digest = value
		}
	}
	if timestamp == "" || digest == "" {
		return domain.ErrInvalidSignature
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return domain.ErrInvalidSignature
	}
	if age := s.clock.Now().Sub(time.Unix(ts, 0)); age > signatureTolerance || age < -signatureTolerance {
		return domain.ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s.", timestamp)
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(digest)) {
		return domain.ErrInvalidSignature
	}
	return nil
}

// envelope mirrors the provider's webhook body. Amounts come over the wire
// as decimal strings in major units.
type envelope struct {
	ID         string `json:"id"`
	EventType  string `json:"event_type"`
	CreateTime string `json:"create_time"`
	Resource   struct {
		ID     string `json:"id"`
		Amount struct {
			Value string `json:"value"`
		} `json:"amount"`
	} `json:"resource"`
}

func parseEnvelope(payload []byte) (*domain.WebhookEvent, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if env.ID == "" || env.EventType == "" {
		return nil, domain.ErrInvalidPayload
	}

	event := &domain.WebhookEvent{
		ProviderEventID: env.ID,
		Type:            env.EventType,
		ResourceID:      env.Resource.ID,
		RawPayload:      payload,
	}
	if env.CreateTime != "" {
		if occurred, err := time.Parse(time.RFC3339, env.CreateTime); err == nil {
			event.OccurredAt = occurred
		}
	}
	if env.Resource.Amount.Value != "" {
		amount, err := strconv.ParseFloat(env.Resource.Amount.Value, 64)
		if err != nil {
			return nil, domain.ErrInvalidPayload
		}
		event.Amount = int64(math.Round(amount * 100))
	}
	return event, nil
}
