package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrDocumentBusy indicates another transition currently holds the document.
var ErrDocumentBusy = errors.New("document transition in progress")

// DocLock serialises transitions per document with a redis lease, so a
// racing transition waits and is then evaluated against the post-transition
// state. It is a best-effort early gate; the optimistic version stamp on
// each document remains the correctness guarantee.
type DocLock struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
}

// NewDocLock constructs a DocLock with the given lease duration. Acquire
// waits up to the lease duration for a held lock before giving up.
func NewDocLock(client *redis.Client, ttl time.Duration) *DocLock {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &DocLock{client: client, ttl: ttl, wait: ttl}
}

// DocLockKey builds redis keys for document critical sections.
func DocLockKey(docType string, docID int64) string {
	return fmt.Sprintf("workflow:%s:%d:lock", docType, docID)
}

// Acquire takes the lease. The returned token must be passed to Release.
// A nil DocLock acquires nothing and always succeeds.
func (l *DocLock) Acquire(ctx context.Context, docType string, docID int64) (string, error) {
	if l == nil || l.client == nil {
		return "", nil
	}
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)
	for {
		ok, err := l.client.SetNX(ctx, DocLockKey(docType, docID), token, l.ttl).Result()
		if err != nil {
			return "", err
		}
		if ok {
			return token, nil
		}
		if time.Now().After(deadline) {
			return "", ErrDocumentBusy
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(25 * time.Millisecond):
		}
	}
}

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
end
return 0
`)

// Release returns the lease if the token still owns it.
func (l *DocLock) Release(ctx context.Context, docType string, docID int64, token string) error {
	if l == nil || l.client == nil || token == "" {
		return nil
	}
	return releaseScript.Run(ctx, l.client, []string{DocLockKey(docType, docID)}, token).Err()
}
