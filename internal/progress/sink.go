package progress

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Sink interface {
	Publish(ctx context.Context, s Snapshot) error
}

// Forward drains a subscription on r into sink until the pass reaches a
// terminal snapshot or ctx is done. Sink errors are logged and skipped.
func Forward(ctx context.Context, r *Reporter, sink Sink, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ch, cancel := r.Subscribe(16)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-ch:
			if !ok {
				return
			}
			if err := sink.Publish(ctx, snap); err != nil {
				logger.Warn("progress publish failed",
					zap.String("run_id", snap.RunID),
					zap.Error(err),
				)
			}
			if snap.Terminal() {
				return
			}
		}
	}
}

// RedisSink appends snapshots to the recompute.progress.<rule> stream.
type RedisSink struct {
	client redis.Cmdable
	maxLen int64
}

func NewRedisSink(client redis.Cmdable) *RedisSink {
	return &RedisSink{client: client, maxLen: 1000}
}

func StreamKey(rule string) string {
	return fmt.Sprintf("recompute.progress.%s", rule)
}

func (s *RedisSink) Publish(ctx context.Context, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshaling progress snapshot: %w", err)
	}

	return s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey(snap.Rule),
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data":   string(data),
			"run_id": snap.RunID,
			"state":  string(snap.State),
			"status": string(snap.Status),
		},
	}).Err()
}
