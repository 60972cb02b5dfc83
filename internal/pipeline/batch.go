package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/shouni/go-json-fetch/pkg/fetcher"
	"github.com/shouni/go-json-fetch/pkg/retry"
	"github.com/shouni/go-json-fetch/pkg/types"
)

const (
	// DefaultMaxConcurrency は、並列取得のデフォルトの最大同時実行数を定義します。
	DefaultMaxConcurrency = 6
)

// BatchOptions は RunAll の動作を設定します。
type BatchOptions struct {
	MaxConcurrency int           // 0 以下の場合は DefaultMaxConcurrency
	RateLimit      time.Duration // 0 の場合はレート制限なし
	Retry          retry.Config
}

// RunAll は複数のURLを並列に取得し、入力と同じ順序で結果を返します。
// 各URLの結果は互いに独立しており、あるURLの失敗が他に影響することはありません。
func RunAll[T any](ctx context.Context, f *fetcher.Fetcher, urls []string, opts BatchOptions) []types.URLResult[T] {
	maxConcurrency := opts.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}

	results := make([]types.URLResult[T], len(urls))

	// バッファ付きチャネルをセマフォとして使用し、同時実行数を制限する
	semaphore := make(chan struct{}, maxConcurrency)

	var rateLimiter <-chan time.Time
	if opts.RateLimit > 0 {
		ticker := time.NewTicker(opts.RateLimit)
		defer ticker.Stop()
		rateLimiter = ticker.C
	}

	var wg sync.WaitGroup
	for i, u := range urls {
		wg.Add(1)

		// maxConcurrency件実行中の場合はここでブロックして待機
		semaphore <- struct{}{}

		go func(i int, u string) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if rateLimiter != nil {
				select {
				case <-rateLimiter:
				case <-ctx.Done():
					results[i] = types.URLResult[T]{URL: u, Error: ctx.Err()}
					return
				}
			}

			v, err := Run[T](ctx, f, u, opts.Retry)
			results[i] = types.URLResult[T]{
				URL:   u,
				Value: v,
				Error: err,
			}
		}(i, u)
	}

	wg.Wait()
	return results
}
