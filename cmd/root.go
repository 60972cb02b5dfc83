package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	clibase "github.com/shouni/go-cli-base"
	"github.com/spf13/cobra"

	"github.com/shouni/go-json-fetch/internal/config"
	"github.com/shouni/go-json-fetch/pkg/httpclient"
)

// --- グローバル定数 ---

const (
	appName = "json-fetch"

	// 全体処理のタイムアウトはクライアントタイムアウトの何倍か
	overallTimeoutFactor  = 2
	DefaultOverallTimeout = 20 * time.Second
)

// --- グローバル変数とフラグ構造体 ---

// AppFlags はこのアプリケーション固有の永続フラグを保持
type AppFlags struct {
	ConfigPath     string // --config 設定ファイル (YAML)
	TimeoutSec     int    // --timeout タイムアウト
	MaxRetries     int    // --max-retries 呼び出し側のリトライ回数
	MaxConcurrency int    // --max-concurrency 最大同時実行数
	UserAgent      string // --user-agent
	DeliverOn      string // --deliver-on 完了通知の配送先 (caller | main)
}

var Flags AppFlags

// appContext は PersistentPreRunE で一度だけ組み立てられる共有依存関係です。
type appContext struct {
	cfg    config.Config
	client *httpclient.Client // プロセス全体で共有するHTTPクライアント
	logger zerolog.Logger
}

var app *appContext

// --- 初期化とロジック (clibaseへのコールバックとして利用) ---

// addAppPersistentFlags は、アプリケーション固有の永続フラグをルートコマンドに追加します。
func addAppPersistentFlags(rootCmd *cobra.Command) {
	defaults := config.Default()

	rootCmd.PersistentFlags().StringVar(&Flags.ConfigPath, "config", "", "設定ファイル (YAML) のパス")
	rootCmd.PersistentFlags().IntVar(&Flags.TimeoutSec, "timeout", defaults.TimeoutSec, "HTTPリクエストのタイムアウト時間（秒）")
	rootCmd.PersistentFlags().IntVar(&Flags.MaxRetries, "max-retries", defaults.MaxRetries, "取得失敗時のリトライ最大回数")
	rootCmd.PersistentFlags().IntVar(&Flags.MaxConcurrency, "max-concurrency", defaults.MaxConcurrency, "最大同時実行数")
	rootCmd.PersistentFlags().StringVar(&Flags.UserAgent, "user-agent", httpclient.DefaultUserAgent, "送信する User-Agent")
	rootCmd.PersistentFlags().StringVar(&Flags.DeliverOn, "deliver-on", defaults.DeliverOn, "完了通知の配送先 (caller | main)")
}

// resolveConfig は設定ファイルの値に、明示的に指定されたフラグを上書きします。
func resolveConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if Flags.ConfigPath != "" {
		loaded, err := config.Load(Flags.ConfigPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if Flags.ConfigPath == "" || flags.Changed("timeout") {
		cfg.TimeoutSec = Flags.TimeoutSec
	}
	if Flags.ConfigPath == "" || flags.Changed("max-retries") {
		cfg.MaxRetries = Flags.MaxRetries
	}
	if Flags.ConfigPath == "" || flags.Changed("max-concurrency") {
		cfg.MaxConcurrency = Flags.MaxConcurrency
	}
	if Flags.ConfigPath == "" || flags.Changed("user-agent") {
		cfg.UserAgent = Flags.UserAgent
	}
	if Flags.ConfigPath == "" || flags.Changed("deliver-on") {
		cfg.DeliverOn = Flags.DeliverOn
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// newLogger は標準エラー出力向けのロガーを生成します。
func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(level).
		With().Timestamp().Str("app", appName).Logger()
}

// initAppPreRunE は、clibase共通処理の後に実行される、アプリケーション固有のPersistentPreRunEです。
// NOTE: clibaseの PersistentPreRunE チェーンにより、clibase.Flags.Verbose はこの関数実行前に設定済み
func initAppPreRunE(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return fmt.Errorf("設定の読み込みエラー: %w", err)
	}

	logger := newLogger(clibase.Flags.Verbose)
	logger.Debug().
		Dur("timeout", cfg.Timeout()).
		Int("max_retries", cfg.MaxRetries).
		Int("max_concurrency", cfg.MaxConcurrency).
		Str("deliver_on", cfg.DeliverOn).
		Msg("HTTPクライアントを初期化します")

	// 共有クライアントの初期化
	app = &appContext{
		cfg: cfg,
		client: httpclient.New(
			cfg.Timeout(),
			httpclient.WithUserAgent(cfg.UserAgent),
		),
		logger: logger,
	}
	return nil
}

// overallTimeout はクライアントタイムアウトとリトライ回数から全体のタイムアウトを決定します。
func overallTimeout(cfg config.Config) time.Duration {
	if cfg.TimeoutSec == 0 {
		return DefaultOverallTimeout
	}
	return cfg.Timeout() * time.Duration(overallTimeoutFactor*(cfg.MaxRetries+1))
}

// --- エントリポイント ---

// Execute は、clibaseのExecuteを使用してアプリケーションを起動します。
func Execute() {
	clibase.Execute(
		appName,
		addAppPersistentFlags,
		initAppPreRunE,
		getCmd,
	)
}
