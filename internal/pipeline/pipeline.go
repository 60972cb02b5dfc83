package pipeline

import (
	"context"
	"fmt"

	"github.com/shouni/go-json-fetch/pkg/fetcher"
	"github.com/shouni/go-json-fetch/pkg/retry"
)

// Run は、呼び出し側のリトライ方針 (cfg) のもとで rawURL を取得し T にデコードするメインの処理パイプラインです。
// fetcher 自体はリトライしないため、リトライ対象 (fetcher.IsRetryable) の判定もここで行います。
func Run[T any](ctx context.Context, f *fetcher.Fetcher, rawURL string, cfg retry.Config) (T, error) {
	v, err := retry.DoValue(
		ctx,
		cfg,
		fmt.Sprintf("URL(%s)のフェッチ", rawURL),
		func() (T, error) { return await[T](ctx, f, rawURL) },
		fetcher.IsRetryable,
	)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("JSON取得パイプラインのエラー: %w", err)
	}
	return v, nil
}

// await は一度だけフェッチし、結果が届くか ctx が終了するまで待機します。
// ctx が先に終了した場合でも通信自体は継続し、結果は破棄されます。
func await[T any](ctx context.Context, f *fetcher.Fetcher, rawURL string) (T, error) {
	select {
	case res := <-fetcher.FetchChan[T](f, rawURL):
		return res.Unwrap()
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
