package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"time"
	"video-chapters/dto"
)

// Entries caches the ordered chapter list of an attachment.
//
// A reader takes the Version before loading from the database and hands it
// back to Set. Invalidate bumps the version, so a list loaded before a
// concurrent write is never stored over the invalidation.
type Entries interface {
	Get(ctx context.Context, attachmentID int64) ([]dto.Entry, bool, error)
	Version(ctx context.Context, attachmentID int64) (int64, error)
	Set(ctx context.Context, attachmentID int64, version int64, entries []dto.Entry) error
	Invalidate(ctx context.Context, attachmentID int64) error
}

var errVersionMoved = errors.New("chapter list version moved")

type redisEntries struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisEntries(rdb *redis.Client, ttl time.Duration) Entries {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &redisEntries{rdb: rdb, ttl: ttl}
}

func key(attachmentID int64) string {
	return fmt.Sprintf("toc:attachment:%d", attachmentID)
}

func versionKey(attachmentID int64) string {
	return fmt.Sprintf("toc:attachment:%d:version", attachmentID)
}

func (c *redisEntries) Get(ctx context.Context, attachmentID int64) ([]dto.Entry, bool, error) {
	raw, err := c.rdb.Get(ctx, key(attachmentID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var entries []dto.Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Int64("attachment_id", attachmentID).Msg("dropping unreadable cached chapter list")
		_ = c.rdb.Del(ctx, key(attachmentID)).Err()
		return nil, false, nil
	}
	return entries, true, nil
}

func (c *redisEntries) Version(ctx context.Context, attachmentID int64) (int64, error) {
	v, err := c.rdb.Get(ctx, versionKey(attachmentID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// Set stores the list only while the version is still the one the caller
// read. A moved version is not an error; the write is dropped.
func (c *redisEntries) Set(ctx context.Context, attachmentID int64, version int64, entries []dto.Entry) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return err
	}

	err = c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, versionKey(attachmentID)).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != version {
			return errVersionMoved
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key(attachmentID), raw, c.ttl)
			return nil
		})
		return err
	}, versionKey(attachmentID))

	if errors.Is(err, errVersionMoved) || errors.Is(err, redis.TxFailedErr) {
		zerolog.Ctx(ctx).Debug().Int64("attachment_id", attachmentID).Msg("skipping stale chapter list")
		return nil
	}
	return err
}

// Invalidate bumps the version before dropping the list.
func (c *redisEntries) Invalidate(ctx context.Context, attachmentID int64) error {
	if err := c.rdb.Incr(ctx, versionKey(attachmentID)).Err(); err != nil {
		return err
	}
	return c.rdb.Del(ctx, key(attachmentID)).Err()
}

// Noop never hits.
type Noop struct{}

func (Noop) Get(context.Context, int64) ([]dto.Entry, bool, error) { return nil, false, nil }
func (Noop) Version(context.Context, int64) (int64, error)         { return 0, nil }
func (Noop) Set(context.Context, int64, int64, []dto.Entry) error  { return nil }
func (Noop) Invalidate(context.Context, int64) error               { return nil }
