// Tripcast - NYC Taxi Trip Duration Prediction and Monitoring
// Copyright 2026 Tripcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tripcast/tripcast

package stream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tripcast/tripcast/internal/config"
	"github.com/tripcast/tripcast/internal/logging"
)

// PredictionPublisher is what the handler needs to emit scored rides.
type PredictionPublisher interface {
	PublishPrediction(ctx context.Context, event *PredictionEvent) error
}

// Publisher wraps a Watermill NATS publisher with circuit breaker
// protection and reconnection handling.
type Publisher struct {
	publisher  message.Publisher
	breaker    *gobreaker.CircuitBreaker[interface{}]
	serializer *Serializer
	subject    string
	mu         sync.RWMutex
	closed     bool
}

// NewPublisher connects to NATS and prepares the prediction publisher.
func NewPublisher(cfg config.StreamConfig, logger watermill.LoggerAdapter) (*Publisher, error) {
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{
				"url": nc.ConnectedUrl(),
			})
		}),
	}

	wmConfig := wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream:   wmNats.JetStreamConfig{Disabled: true},
	}

	pub, err := wmNats.NewPublisher(wmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}

	settings := gobreaker.Settings{
		Name:        "prediction-publisher",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Publisher circuit breaker state changed")
		},
	}

	return &Publisher{
		publisher:  pub,
		breaker:    gobreaker.NewCircuitBreaker[interface{}](settings),
		serializer: NewSerializer(),
		subject:    cfg.PredictionsSubject,
	}, nil
}

// PublishPrediction serializes and publishes one prediction event.
func (p *Publisher) PublishPrediction(ctx context.Context, event *PredictionEvent) error {
	data, err := p.serializer.EncodePrediction(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage(uuid.NewString(), data)
	msg.Metadata.Set("model", event.Model)
	msg.Metadata.Set("ride_id", event.Prediction.RideID)

	return p.publish(ctx, p.subject, msg)
}

func (p *Publisher) publish(_ context.Context, topic string, msg *message.Message) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return fmt.Errorf("publisher is closed")
	}
	p.mu.RUnlock()

	_, err := p.breaker.Execute(func() (interface{}, error) {
		return nil, p.publisher.Publish(topic, msg)
	})
	return err
}

// Close gracefully shuts down the publisher.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.publisher.Close()
}
