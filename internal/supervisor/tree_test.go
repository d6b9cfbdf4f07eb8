// Tripcast - NYC Taxi Trip Duration Prediction and Monitoring
// Copyright 2026 Tripcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tripcast/tripcast

package supervisor

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tickingService counts Serve invocations and blocks until canceled.
type tickingService struct {
	starts  atomic.Int64
	failure error
}

func (s *tickingService) Serve(ctx context.Context) error {
	s.starts.Add(1)
	if s.failure != nil {
		return s.failure
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *tickingService) String() string { return "ticking-service" }

func TestTreeRunsServicesUntilCanceled(t *testing.T) {
	tree := NewTree(DefaultTreeConfig())
	svc := &tickingService{}
	tree.AddScoringService(svc)

	ctx, cancel := context.WithCancel(context.Background())
	done := tree.ServeBackground(ctx)

	require.Eventually(t, func() bool {
		return svc.starts.Load() >= 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("tree did not stop after cancel")
	}
}

func TestTreeRestartsFailingService(t *testing.T) {
	cfg := DefaultTreeConfig()
	cfg.FailureBackoff = 10 * time.Millisecond
	tree := NewTree(cfg)

	svc := &tickingService{failure: errors.New("boom")}
	tree.AddScoringService(svc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tree.ServeBackground(ctx)

	require.Eventually(t, func() bool {
		return svc.starts.Load() >= 2
	}, 5*time.Second, 10*time.Millisecond)
}

func TestTreeDefaultsAppliedToZeroConfig(t *testing.T) {
	tree := NewTree(TreeConfig{})
	assert.Equal(t, 5.0, tree.config.FailureThreshold)
	assert.Equal(t, 15*time.Second, tree.config.FailureBackoff)
	assert.Equal(t, 10*time.Second, tree.config.ShutdownTimeout)
}

func TestHTTPServiceReportsListenFailure(t *testing.T) {
	// Hold the port so the wrapped server cannot bind it.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	server := &http.Server{Addr: listener.Addr().String(), ReadHeaderTimeout: time.Second}
	svc := NewHTTPService(server, time.Second)
	err = svc.Serve(context.Background())
	assert.Error(t, err)
}

func TestHTTPServiceStopsOnCancel(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	server := &http.Server{Addr: addr, ReadHeaderTimeout: time.Second}
	svc := NewHTTPService(server, time.Second)
	assert.Equal(t, "http-server", svc.String())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("service did not stop after cancel")
	}
}
