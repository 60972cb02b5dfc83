package dispatch

import (
	"context"
	"errors"
	"sync"
)

// DefaultQueueSize は Queue のバッファサイズのデフォルト値です。
const DefaultQueueSize = 64

// ErrQueueClosed は、停止済みの Queue に関数が投入された場合に返されます。
var ErrQueueClosed = errors.New("dispatch: キューは停止済みです")

// Dispatcher は、完了コールバックをどの実行コンテキストで呼び出すかを決定します。
type Dispatcher interface {
	Dispatch(fn func())
}

// DispatcherFunc は関数を Dispatcher として扱うためのアダプターです。
type DispatcherFunc func(fn func())

// Dispatch は f(fn) を呼び出します。
func (f DispatcherFunc) Dispatch(fn func()) { f(fn) }

// Inline は呼び出し元のゴルーチン上でそのまま fn を実行します。
var Inline Dispatcher = DispatcherFunc(func(fn func()) { fn() })

// Queue は、投入された関数を専用の単一ゴルーチン上で投入順に実行するシリアルキューです。
// GUIのメインスレッドのように「すべての完了通知を同じコンテキストで受け取りたい」呼び出し元向けです。
type Queue struct {
	mu     sync.RWMutex
	tasks  chan func()
	closed bool
	done   chan struct{}
}

// NewQueue は新しい Queue を生成します。size が 0 以下の場合は DefaultQueueSize を使用します。
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{
		tasks: make(chan func(), size),
		done:  make(chan struct{}),
	}
}

// Dispatch は fn をキューに投入します。キューが停止済みの場合は、呼び出し元のゴルーチンで fn を実行します。
// 完了通知が失われないよう、fn は必ず一度だけ実行されます。
func (q *Queue) Dispatch(fn func()) {
	if err := q.TryDispatch(fn); err != nil {
		fn()
	}
}

// TryDispatch は fn をキューに投入し、停止済みの場合は ErrQueueClosed を返します。
// バッファが満杯の場合は空きが出るまでブロックします。
func (q *Queue) TryDispatch(fn func()) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	q.tasks <- fn
	return nil
}

// Run は ctx がキャンセルされるか Close が呼ばれるまで、投入された関数を順番に実行します。
// Run を呼び出したゴルーチンが、このキューの「メインコンテキスト」になります。
func (q *Queue) Run(ctx context.Context) error {
	defer close(q.done)
	for {
		select {
		case fn, ok := <-q.tasks:
			if !ok {
				return nil
			}
			fn()
		case <-ctx.Done():
			// 送信中でブロックしている Dispatch があっても drain が受信するので Close は完了できる
			go q.Close()
			q.drain()
			return ctx.Err()
		}
	}
}

// drain は停止時点でバッファに残っている関数を実行します。
func (q *Queue) drain() {
	for fn := range q.tasks {
		fn()
	}
}

// Close は新規投入を停止します。投入済みの関数は Run によって最後まで実行されます。
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.tasks)
}

// Done は Run が終了したときに閉じられるチャネルを返します。
func (q *Queue) Done() <-chan struct{} {
	return q.done
}
