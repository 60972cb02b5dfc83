package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockHTTPClient struct {
	mock.Mock
}

func (m *MockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	args := m.Called(req)
	err := args.Error(1)

	// レスポンスが存在する場合のみ型アサーションを行う
	if args.Get(0) != nil {
		return args.Get(0).(*http.Response), err
	}
	return nil, err
}

func TestNew(t *testing.T) {
	t.Run("default timeout", func(t *testing.T) {
		client := New(0)
		assert.Equal(t, DefaultHTTPTimeout, client.httpClient.(*http.Client).Timeout)
		assert.Equal(t, DefaultUserAgent, client.userAgent)
	})
	t.Run("custom timeout", func(t *testing.T) {
		timeout := 5 * time.Second
		client := New(timeout)
		assert.Equal(t, timeout, client.httpClient.(*http.Client).Timeout)
	})
	t.Run("with HTTP client option", func(t *testing.T) {
		mockClient := new(MockHTTPClient)
		client := New(10*time.Second, WithHTTPClient(mockClient))
		assert.Equal(t, mockClient, client.httpClient)
	})
	t.Run("empty user agent keeps default", func(t *testing.T) {
		client := New(0, WithUserAgent(""))
		assert.Equal(t, DefaultUserAgent, client.userAgent)
	})
}

func TestStatusError_Error(t *testing.T) {
	tests := []struct {
		name       string
		body       []byte
		expected   string
		statusCode int
	}{
		{"non-empty body", []byte("error body"), "HTTPステータスエラー: ステータスコード 400, ボディ: error body", 400},
		{"empty body", nil, "HTTPステータスエラー: ステータスコード 404, ボディなし", 404},
		{"truncated body", []byte(strings.Repeat("a", 1025)), "HTTPステータスエラー: ステータスコード 500, ボディ: " + strings.Repeat("a", 1024) + "...", 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &StatusError{StatusCode: tt.statusCode, Body: tt.body}
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestGetBytes(t *testing.T) {
	url := "https://example.com/data.json"
	ctx := context.Background()

	t.Run("successful fetch", func(t *testing.T) {
		mockClient := new(MockHTTPClient)
		expectedBody := []byte(`{"a":1}`)
		mockResponse := &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(bytes.NewReader(expectedBody)),
		}
		mockClient.On("Do", mock.MatchedBy(func(req *http.Request) bool {
			return req.Method == http.MethodGet &&
				req.URL.String() == url &&
				req.Header.Get("User-Agent") == "test-agent" &&
				req.Header.Get("Accept") == "application/json"
		})).Return(mockResponse, nil).Once()

		client := New(0, WithHTTPClient(mockClient), WithUserAgent("test-agent"))
		body, err := client.GetBytes(ctx, url)
		assert.NoError(t, err)
		assert.Equal(t, expectedBody, body)
		mockClient.AssertExpectations(t)
	})

	t.Run("empty body", func(t *testing.T) {
		mockClient := new(MockHTTPClient)
		mockResponse := &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(bytes.NewReader(nil)),
		}
		mockClient.On("Do", mock.Anything).Return(mockResponse, nil).Once()

		client := New(0, WithHTTPClient(mockClient))
		body, err := client.GetBytes(ctx, url)
		assert.NoError(t, err)
		assert.Empty(t, body)
	})

	t.Run("http client error is not retried", func(t *testing.T) {
		mockClient := new(MockHTTPClient)
		var resp *http.Response
		mockClient.On("Do", mock.Anything).Return(resp, errors.New("network error"))

		client := New(0, WithHTTPClient(mockClient))
		body, err := client.GetBytes(ctx, url)
		assert.Error(t, err)
		assert.Nil(t, body)
		assert.Contains(t, err.Error(), "network error")
		mockClient.AssertNumberOfCalls(t, "Do", 1)
	})

	t.Run("status error", func(t *testing.T) {
		mockClient := new(MockHTTPClient)
		mockResponse := &http.Response{
			StatusCode: http.StatusBadRequest,
			Body:       io.NopCloser(bytes.NewReader([]byte("bad request"))),
		}
		mockClient.On("Do", mock.Anything).Return(mockResponse, nil).Once()

		client := New(0, WithHTTPClient(mockClient))
		body, err := client.GetBytes(ctx, url)
		assert.Nil(t, body)
		var statusErr *StatusError
		if assert.ErrorAs(t, err, &statusErr) {
			assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
			assert.Equal(t, []byte("bad request"), statusErr.Body)
		}
	})

	t.Run("content length over limit", func(t *testing.T) {
		mockClient := new(MockHTTPClient)
		mockResponse := &http.Response{
			StatusCode:    http.StatusOK,
			ContentLength: MaxBodySize + 1,
			Body:          io.NopCloser(bytes.NewReader([]byte("{}"))),
		}
		mockClient.On("Do", mock.Anything).Return(mockResponse, nil).Once()

		client := New(0, WithHTTPClient(mockClient))
		body, err := client.GetBytes(ctx, url)
		assert.Error(t, err)
		assert.Nil(t, body)
	})

	t.Run("invalid request url", func(t *testing.T) {
		mockClient := new(MockHTTPClient)
		client := New(0, WithHTTPClient(mockClient))
		_, err := client.GetBytes(ctx, "://bad")
		assert.Error(t, err)
		mockClient.AssertNotCalled(t, "Do", mock.Anything)
	})
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"client error", &StatusError{StatusCode: http.StatusNotFound}, false},
		{"server error", &StatusError{StatusCode: http.StatusBadGateway}, true},
		{"wrapped server error", fmt.Errorf("wrap: %w", &StatusError{StatusCode: http.StatusServiceUnavailable}), true},
		{"network error", errors.New("connection refused"), true},
		{"context canceled", fmt.Errorf("wrap: %w", context.Canceled), false},
		{"deadline exceeded", fmt.Errorf("wrap: %w", context.DeadlineExceeded), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRetryableError(tt.err))
		})
	}
}

func TestIsStatusError(t *testing.T) {
	assert.False(t, IsStatusError(nil))
	assert.True(t, IsStatusError(&StatusError{}))
	assert.False(t, IsStatusError(errors.New("some error")))
}
