package rstore

import (
	"context"
	"errors"
	"time"

	"github.com/ValentinKolb/dShop/lib/store"
	"github.com/go-redis/redis/v8"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("store")

// Options configures the redis store.
type Options struct {
	// Addr is the host:port of the redis server.
	Addr string
	// Password is optional.
	Password string
	// DB selects the redis database.
	DB int
	// Prefix is prepended to every key (default "dshop:").
	Prefix string
	// Timeout bounds every single operation (default 3s).
	Timeout time.Duration
}

type storeImpl struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
}

// NewRedisStore connects to redis and verifies the connection with a ping.
func NewRedisStore(opts Options) (store.IStore, error) {
	if opts.Addr == "" {
		return nil, store.NewError(store.RetCInvalidOperation, "empty redis address")
	}
	if opts.Prefix == "" {
		opts.Prefix = "dshop:"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, store.WrapError(store.RetCUnavailable, "cannot reach redis at "+opts.Addr, err)
	}

	Logger.Debugf("redis store connected to %s (db %d)", opts.Addr, opts.DB)
	return &storeImpl{
		client:  client,
		prefix:  opts.Prefix,
		timeout: opts.Timeout,
	}, nil
}

// ctx returns a context bounded by the operation timeout
func (s *storeImpl) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

func (s *storeImpl) key(key string) (string, error) {
	if key == "" {
		return "", store.NewError(store.RetCInvalidOperation, "empty key")
	}
	return s.prefix + key, nil
}

// wrap converts a redis error into a store error
func wrap(msg string, err error) error {
	if errors.Is(err, redis.ErrClosed) {
		return store.WrapError(store.RetCInvalidOperation, msg, err)
	}
	return store.WrapError(store.RetCUnavailable, msg, err)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Set(key string, value []byte) error {
	k, err := s.key(key)
	if err != nil {
		return err
	}
	ctx, cancel := s.ctx()
	defer cancel()
	if err := s.client.Set(ctx, k, value, 0).Err(); err != nil {
		return wrap("set failed", err)
	}
	return nil
}

func (s *storeImpl) Delete(key string) error {
	k, err := s.key(key)
	if err != nil {
		return err
	}
	ctx, cancel := s.ctx()
	defer cancel()
	if err := s.client.Del(ctx, k).Err(); err != nil {
		return wrap("delete failed", err)
	}
	return nil
}

func (s *storeImpl) Get(key string) ([]byte, bool, error) {
	k, err := s.key(key)
	if err != nil {
		return nil, false, err
	}
	ctx, cancel := s.ctx()
	defer cancel()
	val, err := s.client.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, wrap("get failed", err)
	}
	return val, true, nil
}

func (s *storeImpl) Has(key string) (bool, error) {
	k, err := s.key(key)
	if err != nil {
		return false, err
	}
	ctx, cancel := s.ctx()
	defer cancel()
	n, err := s.client.Exists(ctx, k).Result()
	if err != nil {
		return false, wrap("exists failed", err)
	}
	return n > 0, nil
}

func (s *storeImpl) Close() error {
	return s.client.Close()
}
