package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shouni/go-http-kit/pkg/httpkit"
)

const (
	// HTTPクライアント関連の定数
	DefaultHTTPTimeout = 30 * time.Second
	MaxBodySize        = int64(10 * 1024 * 1024) // 10MB: レスポンスボディの最大読み込みサイズ

	// DefaultUserAgent は User-Agent が未指定の場合に送信される値です。
	DefaultUserAgent = "go-json-fetch/1.0"

	// エラーメッセージに含めるボディの最大長
	maxErrorBodyLength = 1024
)

// Doer は、標準の *http.Client.Do() と互換性のあるHTTPクライアントのインターフェースを定義します。
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// StatusError は 2xx 以外のステータスコードを示すカスタムエラー型です。
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	if len(e.Body) > 0 {
		body := strings.TrimSpace(string(e.Body))
		if len(body) > maxErrorBodyLength {
			body = body[:maxErrorBodyLength] + "..."
		}
		return fmt.Sprintf("HTTPステータスエラー: ステータスコード %d, ボディ: %s", e.StatusCode, body)
	}
	return fmt.Sprintf("HTTPステータスエラー: ステータスコード %d, ボディなし", e.StatusCode)
}

// Temporary は 5xx 系 (サーバー側の一時的な障害) の場合に true を返します。
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 && e.StatusCode <= 599
}

// Client はプロセス全体で共有される長寿命のHTTPクライアントです。
// 複数のゴルーチンから同時に利用しても安全です。リトライは行いません。
type Client struct {
	httpClient Doer
	userAgent  string
}

// ClientOption はClientの設定を行うための関数型です。
type ClientOption func(*Client)

// WithHTTPClient はカスタムのDoerを設定します。
func WithHTTPClient(doer Doer) ClientOption {
	return func(c *Client) {
		c.httpClient = doer
	}
}

// WithUserAgent は送信する User-Agent を設定します。
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// New は、新しいClientを生成します。
func New(timeout time.Duration, options ...ClientOption) *Client {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		userAgent: DefaultUserAgent,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// addCommonHeaders は共通のHTTPヘッダーを設定します。
func (c *Client) addCommonHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
}

// GetBytes は一度だけ HTTP GET を実行し、レスポンスボディをバイト配列として返します。
// ボディが空の場合は空スライス (nil) とエラーなしを返します。
func (c *Client) GetBytes(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("GETリクエスト作成に失敗しました: %w", err)
	}
	c.addCommonHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストに失敗しました (ネットワーク/接続エラー): %w", err)
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return nil, err
	}

	if resp.ContentLength > MaxBodySize {
		return nil, fmt.Errorf("レスポンスボディが最大サイズ (%dバイト) を超えました", MaxBodySize)
	}

	body, err := httpkit.HandleLimitedResponse(resp, MaxBodySize)
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み込みに失敗しました: %w", err)
	}
	return body, nil
}

// checkResponse はHTTPレスポンスのステータスコードを評価します。
// 2xx 以外の場合はボディを読み込んで *StatusError を返します。閉じる責務は呼び出し元にあります。
func checkResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return nil
	}

	bodyBytes, readErr := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize))
	if readErr != nil {
		return &StatusError{StatusCode: resp.StatusCode}
	}
	return &StatusError{
		StatusCode: resp.StatusCode,
		Body:       bodyBytes,
	}
}

// IsStatusError は与えられたエラーが *StatusError を含むかを判断します。
func IsStatusError(err error) bool {
	if err == nil {
		return false
	}

	var statusErr *StatusError
	return errors.As(err, &statusErr)
}

// IsRetryableError はエラーが呼び出し側のリトライ対象かどうかを判定します。
// 4xx は非リトライ対象、5xx やネットワークエラーはリトライ対象です。
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}

	// Context のキャンセルは呼び出し側の意思なのでリトライしない
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}
