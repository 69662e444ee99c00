package ratelimit

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPresets_Ordering(t *testing.T) {
	p := DefaultPresets()
	require.NoError(t, p.Validate())

	assert.Less(t, p.Strict.Limit, p.Standard.Limit)
	assert.Less(t, p.Standard.Limit, p.Lenient.Limit)
	assert.LessOrEqual(t, p.Strict.Window, p.Standard.Window)
	assert.Equal(t, 60*time.Second, p.Strict.Window)
	assert.Equal(t, 5, p.Strict.Limit)
}

func TestPresets_ValidateRejectsBadOrdering(t *testing.T) {
	p := DefaultPresets()
	p.Strict.Limit = p.Lenient.Limit
	assert.Error(t, p.Validate())

	p = DefaultPresets()
	p.Strict.Window = 2 * p.Standard.Window
	assert.Error(t, p.Validate())

	p = DefaultPresets()
	p.Standard.Window = 0
	assert.Error(t, p.Validate())
}

func TestPreset_Lookup(t *testing.T) {
	cfg, ok := Preset(" Strict ")
	require.True(t, ok)
	assert.Equal(t, "strict", cfg.Name)

	_, ok = Preset("aggressive")
	assert.False(t, ok)
}

func TestClientKey(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		trustProxy bool
		want       string
	}{
		{
			name:       "remote addr host",
			remoteAddr: "10.0.0.1:54321",
			want:       "10.0.0.1",
		},
		{
			name:       "ipv6 remote addr",
			remoteAddr: "[2001:db8::1]:443",
			want:       "2001:db8::1",
		},
		{
			name:       "forwarded header ignored without trusted proxy",
			remoteAddr: "10.0.0.1:1",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.9"},
			want:       "10.0.0.1",
		},
		{
			name:       "first forwarded address with trusted proxy",
			remoteAddr: "10.0.0.1:1",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.2"},
			trustProxy: true,
			want:       "203.0.113.9",
		},
		{
			name:       "real ip with trusted proxy",
			remoteAddr: "10.0.0.1:1",
			headers:    map[string]string{"X-Real-IP": "198.51.100.7"},
			trustProxy: true,
			want:       "198.51.100.7",
		},
		{
			name:       "remote addr without port",
			remoteAddr: "10.0.0.9",
			want:       "10.0.0.9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientKey(r, tt.trustProxy))
		})
	}
}

type failingStore struct{}

func (failingStore) Check(context.Context, string, Config) (Result, error) {
	return Result{}, errors.New("boom")
}

func TestInstrumentedStore(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	store := Instrument(NewMemoryStore(), metrics)
	cfg := Config{Name: "strict", Window: time.Minute, Limit: 1}
	ctx := context.Background()

	_, err := store.Check(ctx, "k", cfg)
	require.NoError(t, err)
	_, err = store.Check(ctx, "k", cfg)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Decisions.WithLabelValues("strict", "admitted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Decisions.WithLabelValues("strict", "limited")))

	failing := Instrument(failingStore{}, metrics)
	_, err = failing.Check(ctx, "k", Config{Window: time.Minute, Limit: 1})
	assert.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Errors.WithLabelValues("custom")))
}
