package app

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/aegis/internal/config"
	"github.com/lcalzada-xor/aegis/internal/core/domain"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.Addr = freeAddr(t)
	cfg.GRPCAddr = freeAddr(t)
	cfg.Simulator.TickInterval = 10 * time.Millisecond
	cfg.Simulator.Seed = 42
	cfg.Simulator.RandomSources = 4
	return &cfg
}

func TestNew_WiresComponents(t *testing.T) {
	application, err := New(testConfig(t))
	require.NoError(t, err)

	assert.NotNil(t, application.Simulator)
	assert.NotNil(t, application.WebServer)
	assert.NotNil(t, application.GrpcServer)
	assert.Nil(t, application.Forwarder)
	assert.Equal(t, domain.ViewOverview, application.State.ActiveView())
}

func TestNew_GrpcDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.GRPCAddr = ""

	application, err := New(cfg)
	require.NoError(t, err)
	assert.Nil(t, application.GrpcServer)
}

func TestNew_RejectsInvalidSimulatorConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Simulator.Sources = nil
	cfg.Simulator.RandomSources = 0

	_, err := New(cfg)
	assert.Error(t, err)
}

func TestNew_UnreachableBrokerIsNotFatal(t *testing.T) {
	cfg := testConfig(t)
	cfg.NATS.URL = "nats://" + freeAddr(t)

	application, err := New(cfg)
	require.NoError(t, err)
	assert.Nil(t, application.Forwarder)
}

func TestApplication_Run(t *testing.T) {
	cfg := testConfig(t)
	application, err := New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- application.Run(ctx) }()

	// Seeded baseline plus live ticks.
	require.Eventually(t, func() bool {
		return len(application.State.Events()) >= 3
	}, 2*time.Second, 10*time.Millisecond)
	assert.Len(t, application.State.Points(), cfg.Simulator.PointCapacity)

	require.Eventually(t, func() bool {
		resp, err := http.Get(fmt.Sprintf("http://%s/healthz", cfg.Addr))
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, application.State.SetActiveView(domain.ViewConsole))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("application did not stop")
	}
	assert.False(t, application.Simulator.Running())
}
