package fetcher

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/shouni/go-json-fetch/pkg/dispatch"
)

// ----------------------------------------------------------------------
// 依存性の定義 (DIP)
// ----------------------------------------------------------------------

// Getter は、URL に対して一度だけ GET を発行しボディを返す機能のインターフェースです。
// *httpclient.Client がこれを満たします。
type Getter interface {
	GetBytes(ctx context.Context, url string) ([]byte, error)
}

// Fetcher は、共有HTTPクライアントを使って JSON を取得しデコードします。
// 状態を持たないため、複数のゴルーチンから同時に利用できます。
type Fetcher struct {
	client     Getter
	decoder    Decoder
	dispatcher dispatch.Dispatcher
	logger     zerolog.Logger
}

// Option は Fetcher の設定を行うための関数型です。
type Option func(*Fetcher)

// WithDecoder はデコーダーを差し替えます。
func WithDecoder(dec Decoder) Option {
	return func(f *Fetcher) {
		if dec != nil {
			f.decoder = dec
		}
	}
}

// WithDispatcher は完了コールバックを呼び出す実行コンテキストを設定します。
// 未指定の場合、コールバックは通信を行ったゴルーチン上で呼び出されます。
func WithDispatcher(d dispatch.Dispatcher) Option {
	return func(f *Fetcher) {
		f.dispatcher = d
	}
}

// WithLogger はリクエストごとのデバッグログの出力先を設定します。
func WithLogger(logger zerolog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// New は新しい Fetcher を生成します。client はプロセス全体で一度だけ生成したものを渡してください。
func New(client Getter, opts ...Option) (*Fetcher, error) {
	if client == nil {
		return nil, errors.New("fetcher.New: client cannot be nil")
	}
	f := &Fetcher{
		client:  client,
		decoder: NewJSONDecoder(),
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// ----------------------------------------------------------------------
// メイン関数
// ----------------------------------------------------------------------

// Fetch は rawURL から JSON を取得して T にデコードし、結果を callback に一度だけ渡します。
//
// URL が無効な場合は、通信を行わずに Fetch が戻る前に KindInvalidURL で callback を呼び出します。
// それ以外の場合はすぐに戻り、結果は別のゴルーチン (WithDispatcher 指定時はそのコンテキスト) で届きます。
// Fetch 自身はリトライを行いません。
//
// デコードは WithDecoder で指定したもの (既定は JSONDecoder) で行われます。タグのないフィールドは省略可能で、
// JSON にキーがなければゼロ値のままです。{"b":"x"} を struct{ A int `json:"a"` } に渡しても成功します。
// キーの欠落を KindDecoding として扱いたいフィールドには validate:"required" を付けてください。
// この場合も判定はキーの有無 (null は欠落扱い) で行われ、0 や "" は有効な値です。
func Fetch[T any](f *Fetcher, rawURL string, callback func(Result[T])) {
	u, err := parseURL(rawURL)
	if err != nil {
		f.logger.Debug().Err(err).Str("url", rawURL).Msg("無効なURLのため通信を行いません")
		f.deliver(func() { callback(failure[T](KindInvalidURL, rawURL, err)) })
		return
	}

	go func() {
		res := fetchOnce[T](f, u.String())
		f.deliver(func() { callback(res) })
	}()
}

// FetchChan は Fetch のチャネル版です。返されるチャネルには結果がちょうど一つ送られます。
func FetchChan[T any](f *Fetcher, rawURL string) <-chan Result[T] {
	ch := make(chan Result[T], 1)
	Fetch(f, rawURL, func(res Result[T]) {
		ch <- res
		close(ch)
	})
	return ch
}

// Get は結果が届くまでブロックし、(値, エラー) を返します。
// WithDispatcher で設定したキューを処理しているゴルーチンから呼び出すとデッドロックします。
func Get[T any](f *Fetcher, rawURL string) (T, error) {
	return (<-FetchChan[T](f, rawURL)).Unwrap()
}

// fetchOnce は一度の GET とデコードを実行し、結果を分類します。
func fetchOnce[T any](f *Fetcher, target string) Result[T] {
	requestID := uuid.NewString()
	logger := f.logger.With().Str("request_id", requestID).Str("url", target).Logger()
	start := time.Now()

	res := func() Result[T] {
		body, err := f.client.GetBytes(context.Background(), target)
		if err != nil {
			return failure[T](KindOther, target, err)
		}
		if len(body) == 0 {
			return failure[T](KindNoData, target, nil)
		}
		v, err := decodeInto[T](f.decoder, body)
		if err != nil {
			return failure[T](KindDecoding, target, err)
		}
		return success(v)
	}()

	if res.Err != nil {
		logger.Debug().Err(res.Err).Stringer("kind", KindOf(res.Err)).Dur("elapsed", time.Since(start)).Msg("フェッチに失敗しました")
	} else {
		logger.Debug().Dur("elapsed", time.Since(start)).Msg("フェッチが完了しました")
	}
	return res
}

// deliver は設定された Dispatcher 経由で fn を実行します。
func (f *Fetcher) deliver(fn func()) {
	if f.dispatcher == nil {
		fn()
		return
	}
	if td, ok := f.dispatcher.(tryDispatcher); ok {
		if err := td.TryDispatch(fn); err != nil {
			// 停止済みのキューに渡すと通知が失われるため、このゴルーチンで実行する
			f.logger.Debug().Err(err).Msg("ディスパッチャーが停止済みのため、コールバックを直接呼び出します")
			fn()
		}
		return
	}
	f.dispatcher.Dispatch(fn)
}

// tryDispatcher は投入の失敗を報告できるディスパッチャーです。*dispatch.Queue がこれを満たします。
type tryDispatcher interface {
	TryDispatch(fn func()) error
}

// parseURL は rawURL を解析し、http/https の絶対URLであることを確認します。
func parseURL(rawURL string) (*url.URL, error) {
	if rawURL == "" {
		return nil, errors.New("URLが空です")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.New("httpまたはhttpsのスキームが必要です")
	}
	if u.Host == "" {
		return nil, errors.New("ホストが指定されていません")
	}
	return u, nil
}
