package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shouni/go-json-fetch/pkg/fetcher"
	"github.com/shouni/go-json-fetch/pkg/httpclient"
	"github.com/shouni/go-json-fetch/pkg/retry"
)

type item struct {
	ID *int `json:"id" validate:"required"`
}

var fastRetry = retry.Config{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}

func newFetcher(t *testing.T) *fetcher.Fetcher {
	t.Helper()
	f, err := fetcher.New(httpclient.New(2 * time.Second))
	require.NoError(t, err)
	return f
}

func TestRun_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"id": 5}`))
	}))
	defer srv.Close()

	v, err := Run[item](context.Background(), newFetcher(t), srv.URL, fastRetry)
	require.NoError(t, err)
	assert.Equal(t, 5, *v.ID)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRun_DoesNotRetryNonRetryableKinds(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		kind    fetcher.Kind
	}{
		{
			name:    "client error",
			handler: func(w http.ResponseWriter, r *http.Request) { http.Error(w, "nope", http.StatusNotFound) },
			kind:    fetcher.KindOther,
		},
		{
			name:    "decoding error",
			handler: func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{"other": true}`)) },
			kind:    fetcher.KindDecoding,
		},
		{
			name:    "no data",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) },
			kind:    fetcher.KindNoData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				tt.handler(w, r)
			}))
			defer srv.Close()

			_, err := Run[item](context.Background(), newFetcher(t), srv.URL, fastRetry)
			require.Error(t, err)
			assert.Equal(t, tt.kind, fetcher.KindOf(err))
			assert.Equal(t, int32(1), calls.Load())
		})
	}
}

func TestRun_InvalidURL(t *testing.T) {
	_, err := Run[item](context.Background(), newFetcher(t), "not a url", fastRetry)
	assert.ErrorIs(t, err, fetcher.ErrInvalidURL)
}

func TestRun_ContextTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte(`{"id": 1}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := Run[item](ctx, newFetcher(t), srv.URL, retry.Config{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/1":
			w.Write([]byte(`{"id": 1}`))
		case "/2":
			time.Sleep(20 * time.Millisecond)
			w.Write([]byte(`{"id": 2}`))
		default:
			http.Error(w, "missing", http.StatusNotFound)
		}
	}))
	defer srv.Close()

	urls := []string{srv.URL + "/2", "bad url", srv.URL + "/1", srv.URL + "/missing"}
	results := RunAll[item](context.Background(), newFetcher(t), urls, BatchOptions{
		MaxConcurrency: 2,
		RateLimit:      time.Millisecond,
		Retry:          fastRetry,
	})

	require.Len(t, results, len(urls))
	for i, u := range urls {
		assert.Equal(t, u, results[i].URL)
	}

	require.NoError(t, results[0].Error)
	assert.Equal(t, 2, *results[0].Value.ID)
	assert.ErrorIs(t, results[1].Error, fetcher.ErrInvalidURL)
	require.NoError(t, results[2].Error)
	assert.Equal(t, 1, *results[2].Value.ID)
	assert.ErrorIs(t, results[3].Error, fetcher.ErrOther)
}

func TestRunAll_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := RunAll[item](ctx, newFetcher(t), []string{"http://127.0.0.1:1/a"}, BatchOptions{RateLimit: time.Hour})
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Error, context.Canceled)
}
