package learning

import (
	"context"
	"sync"
	"time"
)

// JobEventはジョブの状態変化を表します。
type JobEvent struct {
	JobID  string    `json:"job_id"`
	Ticker string    `json:"ticker"`
	Status JobStatus `json:"status"`
	Error  string    `json:"error,omitempty"`
	Time   time.Time `json:"time"`
}

// JobEventStream はインメモリでジョブイベントのストリームを実現します。
// goroutine-safeです。
type JobEventStream struct {
	mu      sync.RWMutex
	subs    map[chan JobEvent]struct{}
	bufSize int
}

// NewJobEventStream は新しいJobEventStreamを生成します。
func NewJobEventStream(bufferSize int) *JobEventStream {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &JobEventStream{
		subs:    make(map[chan JobEvent]struct{}),
		bufSize: bufferSize,
	}
}

// Publishはイベントを登録されている全てのsubscriberに送信します。
func (s *JobEventStream) Publish(ctx context.Context, event JobEvent) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for sub := range s.subs {
		select {
		case sub <- event:
		case <-ctx.Done():
			return ctx.Err()
		default:
			// subscriberが詰まっている場合はブロックしない
		}
	}
	return nil
}

// Subscribeはイベントを受け取るためのチャネルを返します。
// contextがキャンセルされるとチャネルは閉じられます。
func (s *JobEventStream) Subscribe(ctx context.Context) (<-chan JobEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan JobEvent, s.bufSize)
	s.subs[ch] = struct{}{}

	// contextがキャンセルされたらunsubscribeする
	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, ch)
		close(ch)
	}()

	return ch, nil
}

// Subscribers returns the number of active subscriptions.
func (s *JobEventStream) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

var _ EventStream = (*JobEventStream)(nil)
