package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// リトライ関連の定数
	DefaultMaxRetries = 3 // 最大リトライ回数 (初回を含まない)

	// バックオフのカスタム設定
	InitialBackoffInterval = 500 * time.Millisecond
	MaxBackoffInterval     = 5 * time.Second
)

// Operation はリトライ可能な処理を表す関数です。成功時は nil を返します。
type Operation func() error

// ShouldRetryFunc はエラーを受け取り、そのエラーがリトライ可能かどうかを判定する関数です。
type ShouldRetryFunc func(error) bool

// NotifyFunc はリトライの直前に、直前のエラーと次回までの待機時間とともに呼び出されます。
type NotifyFunc func(err error, next time.Duration)

// Config はリトライ動作を設定するための構造体です。
// フェッチ処理自体はリトライしないため、リトライ方針は呼び出し側がこの設定で決めます。
type Config struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Notify          NotifyFunc
}

// DefaultConfig は推奨されるデフォルト設定を返します。
func DefaultConfig() Config {
	return Config{
		MaxRetries:      DefaultMaxRetries,
		InitialInterval: InitialBackoffInterval,
		MaxInterval:     MaxBackoffInterval,
	}
}

// newBackOffPolicy は Config から backoff のポリシーを組み立てます。
func newBackOffPolicy(ctx context.Context, cfg Config) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	if cfg.InitialInterval > 0 {
		b.InitialInterval = cfg.InitialInterval
	}
	if cfg.MaxInterval > 0 {
		b.MaxInterval = cfg.MaxInterval
	}
	// 経過時間による打ち切りは行わず、回数とコンテキストで制御する
	b.MaxElapsedTime = 0

	return backoff.WithContext(backoff.WithMaxRetries(b, cfg.MaxRetries), ctx)
}

// Do は指数バックオフとカスタムエラー判定を使用して操作をリトライします。
func Do(ctx context.Context, cfg Config, operationName string, op Operation, shouldRetryFn ShouldRetryFunc) error {
	var (
		lastErr error
		stopped bool
	)

	retryableOp := func() error {
		err := op()
		if err == nil {
			return nil
		}
		lastErr = err

		if shouldRetryFn == nil || !shouldRetryFn(err) {
			stopped = true
			return backoff.Permanent(err) // 即時終了
		}
		return err
	}

	var notify backoff.Notify
	if cfg.Notify != nil {
		notify = backoff.Notify(cfg.Notify)
	}

	err := backoff.RetryNotify(retryableOp, newBackOffPolicy(ctx, cfg), notify)
	if err == nil {
		return nil
	}

	if stopped {
		return fmt.Errorf("%sに失敗しました: リトライ対象外のエラー: %w", operationName, lastErr)
	}

	// コンテキストキャンセル/タイムアウトのエラー処理
	if ctxErr := ctx.Err(); ctxErr != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)) {
		return fmt.Errorf("%sに失敗しました: コンテキストタイムアウト/キャンセル: %w", operationName, ctxErr)
	}

	if lastErr == nil {
		lastErr = err
	}
	return fmt.Errorf("%sに失敗しました: 最大リトライ回数 (%d回) に到達。最終エラー: %w", operationName, cfg.MaxRetries, lastErr)
}

// DoValue は値を返す操作を Do でリトライし、最後に成功した値を返します。
func DoValue[T any](ctx context.Context, cfg Config, operationName string, op func() (T, error), shouldRetryFn ShouldRetryFunc) (T, error) {
	var result T
	err := Do(ctx, cfg, operationName, func() error {
		v, err := op()
		if err != nil {
			return err
		}
		result = v
		return nil
	}, shouldRetryFn)
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
