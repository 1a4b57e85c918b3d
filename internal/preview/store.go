package preview

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotReady is returned while no image exists for the latest revision.
var ErrNotReady = errors.New("preview not ready")

// Store keeps rendered proofs in Redis. Each record has the revision most
// recently requested and the last image rendered.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Store{client: client, ttl: ttl}
}

func wantKey(recordID int64) string { return fmt.Sprintf("preview:invoice:%d:want", recordID) }
func imageKey(recordID int64) string { return fmt.Sprintf("preview:invoice:%d:png", recordID) }
func revKey(recordID int64) string { return fmt.Sprintf("preview:invoice:%d:rev", recordID) }

// Want marks revision as the one the editor is showing.
func (s *Store) Want(ctx context.Context, recordID int64, revision string) error {
	return s.client.Set(ctx, wantKey(recordID), revision, s.ttl).Err()
}

// Wanted returns the requested revision, empty when none.
func (s *Store) Wanted(ctx context.Context, recordID int64) (string, error) {
	rev, err := s.client.Get(ctx, wantKey(recordID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return rev, err
}

// Put stores the image rendered for revision.
func (s *Store) Put(ctx context.Context, recordID int64, revision string, png []byte) error {
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, imageKey(recordID), png, s.ttl)
		p.Set(ctx, revKey(recordID), revision, s.ttl)
		return nil
	})
	return err
}

// Latest returns the image for the wanted revision. An older image is
// returned with stale set.
func (s *Store) Latest(ctx context.Context, recordID int64) (png []byte, stale bool, err error) {
	want, err := s.Wanted(ctx, recordID)
	if err != nil {
		return nil, false, err
	}
	vals, err := s.client.MGet(ctx, imageKey(recordID), revKey(recordID)).Result()
	if err != nil {
		return nil, false, err
	}
	img, ok := vals[0].(string)
	if !ok {
		return nil, false, ErrNotReady
	}
	rev, _ := vals[1].(string)
	return []byte(img), want != "" && rev != want, nil
}
