package clickhouse

import (
	"testing"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsMapping(t *testing.T) {
	cfg := ClientConfig{Port: 9000, Database: "default", User: "default"}
	for _, opt := range []ClientOption{
		WithAddr("ch.internal", 8123, true),
		WithAuth("market", "", "secret"),
		WithTimeouts(2*time.Second, 0, 90*time.Second),
	} {
		opt(&cfg)
	}
	require.NoError(t, cfg.validate())

	opts := options(cfg)
	assert.Equal(t, []string{"ch.internal:8123"}, opts.Addr)
	assert.Equal(t, clickhouse.HTTP, opts.Protocol)
	assert.Equal(t, "market", opts.Auth.Database)
	assert.Equal(t, "default", opts.Auth.Username)
	assert.Equal(t, 2*time.Second, opts.DialTimeout)
	assert.Equal(t, 90, opts.Settings["max_execution_time"])
}

func TestNewClientRejectsMissingHost(t *testing.T) {
	_, err := NewClient(WithAuth("market", "", ""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "host is required")
}
