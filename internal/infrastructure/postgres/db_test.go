package postgres

import (
	"context"
	"testing"
	"time"
)

func TestNewPoolInvalidURL(t *testing.T) {
	if _, err := NewPool(context.Background(), PoolConfig{URL: "not-a-url"}); err == nil {
		t.Fatalf("expected error when parsing invalid URL")
	}
}

func TestNewPoolPingFailure(t *testing.T) {
	cfg := PoolConfig{
		URL:         "postgres://invalid-host.invalid:5432/db",
		MaxConns:    1,
		MinConns:    0,
		PingTimeout: 2 * time.Second,
	}

	if _, err := NewPool(context.Background(), cfg); err == nil {
		t.Fatalf("expected error when pool cannot connect")
	}
}
