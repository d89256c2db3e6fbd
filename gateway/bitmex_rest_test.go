package gateway

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBitmexRESTClient_Instrument(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/instrument", r.URL.Path)
		assert.Equal(t, "XBTUSDT", r.URL.Query().Get("symbol"))
		io.WriteString(w, `[{"symbol":"XBTUSDT","fundingRate":0.0001,"markPrice":62000.12,"timestamp":"2024-03-01T08:00:00.000Z"}]`)
	}))
	defer ts.Close()

	cli := NewBitmexRESTClient(ts.URL, 0, time.Second)
	inst, err := cli.Instrument(context.Background(), "XBTUSDT")
	require.NoError(t, err)
	assert.Equal(t, 0.0001, inst.FundingRate)
	assert.Equal(t, 62000.12, inst.MarkPrice)
}

func TestBitmexRESTClient_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusBadGateway, `{}`},
		{"empty list", http.StatusOK, `[]`},
		{"bad json", http.StatusOK, `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer ts.Close()

			_, err := NewBitmexRESTClient(ts.URL, 0, time.Second).Instrument(context.Background(), "XBTUSDT")
			assert.Error(t, err)
		})
	}
}

func TestBitmexRESTClient_RateLimitHonoursContext(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[{"symbol":"XBTUSDT","fundingRate":0.0001}]`)
	}))
	defer ts.Close()

	cli := NewBitmexRESTClient(ts.URL, 0.01, time.Second)
	_, err := cli.Instrument(context.Background(), "XBTUSDT")
	require.NoError(t, err)

	// 第二次需要等待约 100s，ctx 先到期
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = cli.Instrument(ctx, "XBTUSDT")
	assert.ErrorContains(t, err, "rate limit")
}
