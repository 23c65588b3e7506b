package learning

import "context"

// EventStreamはジョブイベントのストリームを扱うインターフェースです。
type EventStream interface {
	// Publishはイベントをストリームに発行します。
	Publish(ctx context.Context, event JobEvent) error
	// Subscribeはストリームからイベントを受け取るためのチャネルを返します。
	Subscribe(ctx context.Context) (<-chan JobEvent, error)
}
