package data

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/OneOfOne/xxhash"
	"github.com/redis/go-redis/v9"

	"github.com/redquill/redquill/src/opserver/engine"
)

const (
	resultPrefix = "result:"
	streamEvents = "redquill.operations"
)

func MustRedis(url string) *redis.Client {
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	return redis.NewClient(opt)
}

// ResultFingerprint hashes a result submission, reporting agent included, so
// repeated deliveries of the same accepted result can be spotted cheaply.
func ResultFingerprint(agentID, linkID, output string) string {
	h := xxhash.New64()
	_, _ = h.WriteString(agentID)
	_, _ = h.WriteString(linkID)
	_, _ = h.WriteString(output)
	return strconv.FormatUint(h.Sum64(), 16)
}

// SeenResult reports whether the fingerprint was already recorded. Only
// accepted results are ever recorded, so a hit means a true redelivery.
func SeenResult(ctx context.Context, rdb *redis.Client, linkID, fingerprint string) (bool, error) {
	n, err := rdb.Exists(ctx, resultPrefix+linkID+":"+fingerprint).Result()
	return n > 0, err
}

// MarkResult records an accepted result's fingerprint. Called after the
// engine takes the result, never before; a rejected submission must leave no
// trace.
func MarkResult(ctx context.Context, rdb *redis.Client, linkID, fingerprint string) error {
	return rdb.Set(ctx, resultPrefix+linkID+":"+fingerprint, 1, 24*time.Hour).Err()
}

// StreamNotifier publishes engine events onto a redis stream for reporting
// consumers.
type StreamNotifier struct {
	rdb *redis.Client
}

func NewStreamNotifier(rdb *redis.Client) *StreamNotifier {
	return &StreamNotifier{rdb: rdb}
}

func (n *StreamNotifier) Notify(ev engine.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := n.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: streamEvents,
		Values: map[string]interface{}{
			"kind":      string(ev.Kind),
			"operation": ev.OperationID,
			"name":      ev.Operation,
			"detail":    ev.Detail,
			"at":        ev.At.Format(time.RFC3339),
		},
	}).Err()
	if err != nil {
		log.Printf("redis: publish event: %v", err)
	}
}
