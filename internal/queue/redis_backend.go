package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only when it still belongs to the caller.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisBackend keeps one sorted set of batch IDs per process (scored by
// creation time) and one JSON blob per batch. Locks are plain keys written
// with SET NX PX.
type RedisBackend struct {
	client    redis.UniversalClient
	namespace string
}

// NewRedisBackend returns a backend storing keys under namespace.
func NewRedisBackend(client redis.UniversalClient, namespace string) *RedisBackend {
	if namespace == "" {
		namespace = "pagepreview"
	}
	return &RedisBackend{client: client, namespace: namespace}
}

func (b *RedisBackend) indexKey(process string) string {
	return b.namespace + ":batches:" + process
}

func (b *RedisBackend) batchKey(id string) string {
	return b.namespace + ":batch:" + id
}

func (b *RedisBackend) lockKey(key string) string {
	return b.namespace + ":lock:" + key
}

func (b *RedisBackend) SaveBatch(ctx context.Context, batch *Batch) error {
	if batch == nil {
		return nil
	}
	if batch.Empty() {
		return b.DeleteBatch(ctx, batch.Process, batch.ID)
	}
	blob, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}
	_, err = b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, b.batchKey(batch.ID), blob, 0)
		pipe.ZAddNX(ctx, b.indexKey(batch.Process), redis.Z{
			Score:  float64(batch.CreatedAt.UnixMicro()),
			Member: batch.ID,
		})
		return nil
	})
	return wrapStore("save batch", err)
}

func (b *RedisBackend) loadBatch(ctx context.Context, id string) (*Batch, error) {
	blob, err := b.client.Get(ctx, b.batchKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var batch Batch
	if err := json.Unmarshal(blob, &batch); err != nil {
		return nil, fmt.Errorf("decode batch %s: %w", id, err)
	}
	return &batch, nil
}

func (b *RedisBackend) NextBatch(ctx context.Context, process string) (*Batch, error) {
	for {
		ids, err := b.client.ZRange(ctx, b.indexKey(process), 0, 0).Result()
		if err != nil {
			return nil, wrapStore("next batch", err)
		}
		if len(ids) == 0 {
			return nil, nil
		}
		batch, err := b.loadBatch(ctx, ids[0])
		if err != nil {
			return nil, wrapStore("next batch", err)
		}
		if batch != nil {
			return batch, nil
		}
		// Index entry without a blob; drop it and look again.
		if err := b.client.ZRem(ctx, b.indexKey(process), ids[0]).Err(); err != nil {
			return nil, wrapStore("next batch", err)
		}
	}
}

func (b *RedisBackend) ListBatches(ctx context.Context, process string) ([]Batch, error) {
	ids, err := b.client.ZRange(ctx, b.indexKey(process), 0, -1).Result()
	if err != nil {
		return nil, wrapStore("list batches", err)
	}
	batches := make([]Batch, 0, len(ids))
	for _, id := range ids {
		batch, err := b.loadBatch(ctx, id)
		if err != nil {
			return nil, wrapStore("list batches", err)
		}
		if batch != nil {
			batches = append(batches, *batch)
		}
	}
	return batches, nil
}

func (b *RedisBackend) DeleteBatch(ctx context.Context, process, id string) error {
	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, b.batchKey(id))
		pipe.ZRem(ctx, b.indexKey(process), id)
		return nil
	})
	return wrapStore("delete batch", err)
}

func (b *RedisBackend) DeleteProcess(ctx context.Context, process string) (int, error) {
	ids, err := b.client.ZRange(ctx, b.indexKey(process), 0, -1).Result()
	if err != nil {
		return 0, wrapStore("delete process", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, b.batchKey(id))
	}
	keys = append(keys, b.indexKey(process))
	if err := b.client.Del(ctx, keys...).Err(); err != nil {
		return 0, wrapStore("delete process", err)
	}
	return len(ids), nil
}

func (b *RedisBackend) Pending(ctx context.Context, process string) (int, error) {
	batches, err := b.ListBatches(ctx, process)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, batch := range batches {
		total += len(batch.Items)
	}
	return total, nil
}

func (b *RedisBackend) TryLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	ok, err := b.client.SetNX(ctx, b.lockKey(key), owner, ttl).Result()
	if err != nil {
		return false, wrapStore("acquire lock", err)
	}
	return ok, nil
}

func (b *RedisBackend) Unlock(ctx context.Context, key, owner string) error {
	err := releaseScript.Run(ctx, b.client, []string{b.lockKey(key)}, owner).Err()
	if errors.Is(err, redis.Nil) {
		err = nil
	}
	return wrapStore("release lock", err)
}

func (b *RedisBackend) ForceUnlock(ctx context.Context, key string) error {
	return wrapStore("force release lock", b.client.Del(ctx, b.lockKey(key)).Err())
}

func (b *RedisBackend) LockHolder(ctx context.Context, key string) (*Lock, error) {
	owner, err := b.client.Get(ctx, b.lockKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapStore("read lock", err)
	}
	ttl, err := b.client.PTTL(ctx, b.lockKey(key)).Result()
	if err != nil {
		return nil, wrapStore("read lock", err)
	}
	lock := &Lock{Key: key, Owner: owner}
	if ttl > 0 {
		lock.ExpiresAt = time.Now().Add(ttl).UTC()
	}
	return lock, nil
}

func (b *RedisBackend) Close() error {
	return b.client.Close()
}
