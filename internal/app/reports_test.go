package app

import (
	"context"
	"io"
	"log/slog"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuildReportsWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &Config{ReportSource: SourceAPI, ShopAPIURL: "http://127.0.0.1:0", ShopAPIPageSize: 100, RedisAddr: mr.Addr()}

	r, err := BuildReports(context.Background(), cfg, discardLogger(), prometheus.NewRegistry())
	require.NoError(t, err)
	t.Cleanup(r.Close)

	assert.NotNil(t, r.Service)
	assert.NotNil(t, r.Store)
	assert.NotNil(t, r.Redis)
	assert.Same(t, r.Cache, r.Service.Cache())
}

func TestBuildReportsWithoutRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	cfg := &Config{ReportSource: SourceAPI, ShopAPIURL: "http://127.0.0.1:0", ShopAPIPageSize: 100, RedisAddr: addr}

	r, err := BuildReports(context.Background(), cfg, discardLogger(), prometheus.NewRegistry())
	require.NoError(t, err)
	t.Cleanup(r.Close)

	assert.Nil(t, r.Store)
	assert.Nil(t, r.Redis)
	assert.NotNil(t, r.Service)
}

func TestBuildReportsRejectsUnknownSource(t *testing.T) {
	_, err := BuildReports(context.Background(), &Config{ReportSource: "mongo"}, discardLogger(), prometheus.NewRegistry())
	assert.Error(t, err)
}
