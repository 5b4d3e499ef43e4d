package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"settlement-vault/internal/core/domain"
	"settlement-vault/internal/core/ports"

	"github.com/rs/zerolog"
)

// eventRetryIntervals spaces the redelivery attempts to the indexer.
var eventRetryIntervals = []time.Duration{
	15 * time.Second,
	60 * time.Second,
	2 * time.Minute,
	5 * time.Minute,
}

// EventEnvelope is the JSON structure pushed to the indexer endpoint.
type EventEnvelope struct {
	Event     *domain.VaultEvent `json:"event"`
	Signature string             `json:"signature"`
}

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// IndexerPublisher implements ports.EventPublisher by POSTing signed event
// envelopes to a configured indexer URL. Delivery is best-effort: Publish
// returns after the envelope is handed to the async delivery loop.
type IndexerPublisher struct {
	url        string
	secret     string
	sigSvc     ports.SignatureService
	httpClient HTTPClient
	log        zerolog.Logger
}

// NewIndexerPublisher creates a publisher. An empty url disables publishing.
func NewIndexerPublisher(url, secret string, sigSvc ports.SignatureService, httpClient HTTPClient, log zerolog.Logger) *IndexerPublisher {
	return &IndexerPublisher{
		url:        url,
		secret:     secret,
		sigSvc:     sigSvc,
		httpClient: httpClient,
		log:        log,
	}
}

// Publish signs the event and fires the async delivery loop.
func (p *IndexerPublisher) Publish(ctx context.Context, event *domain.VaultEvent) error {
	if p.url == "" {
		p.log.Debug().Str("event", string(event.Type)).Msg("indexer: no URL configured, skipping")
		return nil
	}

	eventBytes, err := json.Marshal(event)
	if err != nil {
		p.log.Error().Err(err).Str("event_id", event.ID.String()).Msg("indexer: failed to marshal event")
		return err
	}

	envelope := EventEnvelope{
		Event:     event,
		Signature: p.sigSvc.Sign(p.secret, string(eventBytes)),
	}

	go p.deliverWithRetries(envelope, event.ID.String())
	return nil
}

// deliverWithRetries attempts delivery until a 2xx response or exhaustion.
func (p *IndexerPublisher) deliverWithRetries(envelope EventEnvelope, eventID string) {
	payloadBytes, err := json.Marshal(envelope)
	if err != nil {
		p.log.Error().Err(err).Str("event_id", eventID).Msg("indexer: failed to marshal envelope")
		return
	}

	for attempt := 0; attempt <= len(eventRetryIntervals); attempt++ {
		if attempt > 0 {
			time.Sleep(eventRetryIntervals[attempt-1])
		}

		req, err := http.NewRequest(http.MethodPost, p.url, bytes.NewReader(payloadBytes))
		if err != nil {
			p.log.Error().Err(err).Str("event_id", eventID).Int("attempt", attempt+1).Msg("indexer: failed to create request")
			continue
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := p.httpClient.Do(req)
		if err != nil {
			p.log.Warn().Err(err).Str("event_id", eventID).Int("attempt", attempt+1).Msg("indexer: delivery failed")
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			p.log.Info().Str("event_id", eventID).Int("attempt", attempt+1).Int("status", resp.StatusCode).Msg("indexer: event delivered")
			return
		}

		p.log.Warn().Str("event_id", eventID).Int("attempt", attempt+1).Int("status", resp.StatusCode).Msg("indexer: non-2xx response, retrying")
	}

	p.log.Error().Str("event_id", eventID).Msg("indexer: all retry attempts exhausted")
}
