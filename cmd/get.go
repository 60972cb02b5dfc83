package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/shouni/go-json-fetch/internal/config"
	"github.com/shouni/go-json-fetch/internal/pipeline"
	"github.com/shouni/go-json-fetch/pkg/dispatch"
	"github.com/shouni/go-json-fetch/pkg/fetcher"
	"github.com/shouni/go-json-fetch/pkg/retry"
	"github.com/shouni/go-json-fetch/pkg/types"
)

// フラグ変数
var getURLs []string

// readURLsFromStdin は標準入力からURLを一行ずつ読み込みます。
func readURLsFromStdin(r io.Reader) ([]string, error) {
	var urls []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := normalizeURL(scanner.Text()); line != "" {
			urls = append(urls, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("標準入力の読み取りエラー: %w", err)
	}
	return urls, nil
}

// newFetcher は共有クライアントと設定から Fetcher を組み立てます。
// deliver_on が main の場合は専用キューを起動し、停止関数を返します。
func newFetcher(ctx context.Context, a *appContext) (*fetcher.Fetcher, func(), error) {
	opts := []fetcher.Option{fetcher.WithLogger(a.logger)}
	stop := func() {}

	if a.cfg.DeliverOn == config.DeliverOnMain {
		queue := dispatch.NewQueue(a.cfg.MaxConcurrency)
		queueCtx, cancel := context.WithCancel(ctx)
		go queue.Run(queueCtx)
		opts = append(opts, fetcher.WithDispatcher(queue))
		stop = func() {
			cancel()
			<-queue.Done()
		}
	}

	f, err := fetcher.New(a.client, opts...)
	if err != nil {
		stop()
		return nil, nil, fmt.Errorf("Fetcherの初期化エラー: %w", err)
	}
	return f, stop, nil
}

// runGetPipeline は、複数URLの取得を実行し、結果を返すメインロジックです。
func runGetPipeline(ctx context.Context, a *appContext, urls []string) ([]types.URLResult[any], error) {
	f, stop, err := newFetcher(ctx, a)
	if err != nil {
		return nil, err
	}
	defer stop()

	retryCfg := retry.DefaultConfig()
	retryCfg.MaxRetries = uint64(a.cfg.MaxRetries)
	retryCfg.Notify = func(err error, next time.Duration) {
		a.logger.Warn().Err(err).Dur("next", next).Msg("取得に失敗したためリトライします")
	}

	return pipeline.RunAll[any](ctx, f, urls, pipeline.BatchOptions{
		MaxConcurrency: a.cfg.MaxConcurrency,
		Retry:          retryCfg,
	}), nil
}

// printResults は結果を整形して w に出力し、失敗件数を返します。
func printResults(w io.Writer, results []types.URLResult[any]) int {
	failed := 0
	for i, res := range results {
		if res.Error != nil {
			failed++
			fmt.Fprintf(w, "❌ [%d] %s\n", i+1, res.URL)
			fmt.Fprintf(w, "     エラー (%s): %v\n", fetcher.KindOf(res.Error), res.Error)
			continue
		}

		pretty, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(res.Value, "", "  ")
		if err != nil {
			failed++
			fmt.Fprintf(w, "❌ [%d] %s\n     エラー: JSONの整形に失敗しました: %v\n", i+1, res.URL, err)
			continue
		}
		fmt.Fprintf(w, "✅ [%d] %s\n%s\n", i+1, res.URL, pretty)
	}
	fmt.Fprintln(w, "-------------------------------")
	fmt.Fprintf(w, "完了: 成功 %d 件, 失敗 %d 件\n", len(results)-failed, failed)
	return failed
}

var getCmd = &cobra.Command{
	Use:   "get [URL...]",
	Short: "指定されたURLからJSONを取得し、整形して表示します",
	Long:  `引数、--url フラグ、または標準入力 (一行一URL) で指定されたURLに GET を発行し、レスポンスのJSONを整形して表示します。複数のURLは並列に取得されます。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if app == nil {
			return fmt.Errorf("HTTPクライアントが初期化されていません")
		}

		// 1. 処理対象URLの決定 (引数・フラグ優先)
		rawURLs := append(append([]string{}, args...), getURLs...)
		if len(rawURLs) == 0 {
			app.logger.Info().Msg("URLが指定されていないため、標準入力からURLを読み込みます (Ctrl+DまたはEOFで終了)...")
			stdinURLs, err := readURLsFromStdin(cmd.InOrStdin())
			if err != nil {
				return err
			}
			rawURLs = stdinURLs
		}
		urls, err := collectURLs(rawURLs, nil)
		if err != nil {
			return err
		}

		// 2. 全体処理のコンテキストを設定
		timeout := overallTimeout(app.cfg)
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		app.logger.Info().Int("urls", len(urls)).Dur("overall_timeout", timeout).Msg("JSON取得を開始します")

		// 3. メインロジックの実行
		results, err := runGetPipeline(ctx, app, urls)
		if err != nil {
			return fmt.Errorf("JSON取得パイプラインの実行エラー: %w", err)
		}

		// 4. 結果の出力
		if failed := printResults(cmd.OutOrStdout(), results); failed > 0 {
			return fmt.Errorf("%d 件のURLで取得に失敗しました", failed)
		}
		return nil
	},
}

func init() {
	getCmd.Flags().StringSliceVarP(&getURLs, "url", "u", nil, "取得対象のURL (複数指定可)")
}
