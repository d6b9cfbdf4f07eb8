// Tripcast - NYC Taxi Trip Duration Prediction and Monitoring
// Copyright 2026 Tripcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tripcast/tripcast

package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tripcast/tripcast/internal/config"
	"github.com/tripcast/tripcast/internal/logging"
)

// Service consumes ride events from NATS and feeds them to the handler.
// It implements suture.Service: Serve blocks until the context is done or
// the subscription fails, and the supervisor restarts it.
type Service struct {
	cfg     config.StreamConfig
	handler *Handler
	logger  watermill.LoggerAdapter
}

// NewService builds the stream scorer service.
func NewService(cfg config.StreamConfig, handler *Handler, logger watermill.LoggerAdapter) *Service {
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}
	return &Service{cfg: cfg, handler: handler, logger: logger}
}

// String identifies the service in supervisor logs.
func (s *Service) String() string {
	return "stream-scorer"
}

// Serve subscribes to the events subject and processes messages until the
// context is canceled.
func (s *Service) Serve(ctx context.Context) error {
	subscriber, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              s.cfg.URL,
		QueueGroupPrefix: s.cfg.QueueGroup,
		SubscribersCount: 1,
		AckWaitTimeout:   30 * time.Second,
		NatsOptions: []natsgo.Option{
			natsgo.RetryOnFailedConnect(true),
			natsgo.MaxReconnects(-1),
			natsgo.ReconnectWait(2 * time.Second),
		},
		Unmarshaler: &wmNats.NATSMarshaler{},
		JetStream:   wmNats.JetStreamConfig{Disabled: true},
	}, s.logger)
	if err != nil {
		return fmt.Errorf("create subscriber: %w", err)
	}
	defer subscriber.Close()

	messages, err := subscriber.Subscribe(ctx, s.cfg.EventsSubject)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", s.cfg.EventsSubject, err)
	}

	logging.Info().
		Str("subject", s.cfg.EventsSubject).
		Str("queue_group", s.cfg.QueueGroup).
		Bool("test_run", s.cfg.TestRun).
		Msg("Stream scorer started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return fmt.Errorf("subscription to %s closed", s.cfg.EventsSubject)
			}
			s.process(ctx, msg)
		}
	}
}

func (s *Service) process(ctx context.Context, msg *message.Message) {
	if _, err := s.handler.Handle(ctx, msg.Payload); err != nil {
		logging.Error().Err(err).Str("message_id", msg.UUID).Msg("Ride event failed, requeueing")
		msg.Nack()
		return
	}
	msg.Ack()
}
