package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tolelom/monchain/core"
)

const redisScanCount = 512

// RedisOptions configures the Redis backend.
type RedisOptions struct {
	// Namespace is prepended to every key so several nodes can share one server.
	Namespace string
	// Timeout bounds each round trip. Zero means no deadline.
	Timeout time.Duration
}

// RedisDB implements DB on a Redis server. Ordered prefix iteration is built
// from SCAN, so it is only consistent while no other writer touches the
// namespace.
type RedisDB struct {
	client redis.UniversalClient
	ns     string
	tmo    time.Duration
}

// NewRedisDB wraps an existing client and verifies connectivity.
func NewRedisDB(client redis.UniversalClient, opts *RedisOptions) (*RedisDB, error) {
	if client == nil {
		return nil, errors.New("redis: client cannot be nil")
	}
	if opts == nil {
		opts = &RedisOptions{}
	}
	r := &RedisDB{client: client, ns: opts.Namespace, tmo: opts.Timeout}
	ctx, cancel := r.ctx()
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return r, nil
}

// OpenRedisDB dials addr and returns a RedisDB on top of it.
func OpenRedisDB(addr string, opts *RedisOptions) (*RedisDB, error) {
	if addr == "" {
		return nil, errors.New("redis: endpoint is required")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	db, err := NewRedisDB(client, opts)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return db, nil
}

func (r *RedisDB) ctx() (context.Context, context.CancelFunc) {
	if r.tmo <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), r.tmo)
}

func (r *RedisDB) key(k []byte) string { return r.ns + string(k) }

func (r *RedisDB) Get(key []byte) ([]byte, error) {
	ctx, cancel := r.ctx()
	defer cancel()
	val, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get %q: %w", key, err)
	}
	return val, nil
}

func (r *RedisDB) Set(key, value []byte) error {
	ctx, cancel := r.ctx()
	defer cancel()
	return r.client.Set(ctx, r.key(key), value, 0).Err()
}

func (r *RedisDB) Delete(key []byte) error {
	ctx, cancel := r.ctx()
	defer cancel()
	return r.client.Del(ctx, r.key(key)).Err()
}

// NewIterator collects matching keys with SCAN, sorts them and fetches the
// values with MGET. The iterator is a point-in-time copy.
func (r *RedisDB) NewIterator(prefix []byte) Iterator {
	ctx, cancel := r.ctx()
	defer cancel()

	pattern := escapeGlob(r.key(prefix)) + "*"
	var keys []string
	iter := r.client.Scan(ctx, 0, pattern, redisScanCount).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return &sliceIter{idx: -1, err: fmt.Errorf("redis: scan %q: %w", prefix, err)}
	}
	if len(keys) == 0 {
		return &sliceIter{idx: -1}
	}
	sort.Strings(keys)

	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return &sliceIter{idx: -1, err: fmt.Errorf("redis: mget: %w", err)}
	}
	pairs := make([]kvPair, 0, len(keys))
	for i, k := range keys {
		s, ok := vals[i].(string)
		if !ok {
			continue // deleted between SCAN and MGET
		}
		pairs = append(pairs, kvPair{k: []byte(strings.TrimPrefix(k, r.ns)), v: []byte(s)})
	}
	return &sliceIter{pairs: pairs, idx: -1}
}

func (r *RedisDB) NewBatch() Batch {
	return &redisBatch{db: r}
}

func (r *RedisDB) Close() error {
	return r.client.Close()
}

type redisOp struct {
	key   string
	value []byte // nil means delete
}

// redisBatch applies its operations inside MULTI/EXEC.
type redisBatch struct {
	db  *RedisDB
	ops []redisOp
}

func (b *redisBatch) Set(key, value []byte) {
	cp := make([]byte, len(value))
	copy(cp, value)
	b.ops = append(b.ops, redisOp{key: b.db.key(key), value: cp})
}

func (b *redisBatch) Delete(key []byte) {
	b.ops = append(b.ops, redisOp{key: b.db.key(key)})
}

func (b *redisBatch) Reset() { b.ops = nil }

func (b *redisBatch) Write() error {
	if len(b.ops) == 0 {
		return nil
	}
	ctx, cancel := b.db.ctx()
	defer cancel()
	_, err := b.db.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, op := range b.ops {
			if op.value == nil {
				pipe.Del(ctx, op.key)
			} else {
				pipe.Set(ctx, op.key, op.value, 0)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: write batch: %w", err)
	}
	return nil
}

func escapeGlob(s string) string {
	var sb strings.Builder
	for _, c := range s {
		switch c {
		case '*', '?', '[', ']', '\\':
			sb.WriteByte('\\')
		}
		sb.WriteRune(c)
	}
	return sb.String()
}

type kvPair struct{ k, v []byte }

// sliceIter iterates a pre-collected, sorted result set.
type sliceIter struct {
	pairs []kvPair
	idx   int
	err   error
}

func (it *sliceIter) Next() bool {
	if it.err != nil {
		return false
	}
	it.idx++
	return it.idx < len(it.pairs)
}
func (it *sliceIter) Key() []byte   { return it.pairs[it.idx].k }
func (it *sliceIter) Value() []byte { return it.pairs[it.idx].v }
func (it *sliceIter) Release()      {}
func (it *sliceIter) Error() error  { return it.err }
