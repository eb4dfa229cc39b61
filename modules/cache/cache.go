// Package cache is a reference module backed by Redis, grounded in the
// teacher's module/cache_redis.go. A request is
// {"op": "get"|"set"|"delete", "key": ..., "value": ..., "ttl_ms": ...}.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ruleflow/phlow/protocol"
	"github.com/ruleflow/phlow/value"
)

// Config mirrors the teacher's RedisCacheConfig.
type Config struct {
	Address    string
	Password   string
	DB         int
	Prefix     string
	DefaultTTL time.Duration
}

func configFromWith(setup protocol.ModuleSetup) Config {
	cfg := Config{Address: "localhost:6379"}
	if !setup.HasWith {
		return cfg
	}
	if v, ok := setup.With.Get("address"); ok && v.IsString() {
		cfg.Address = v.String()
	}
	if v, ok := setup.With.Get("password"); ok && v.IsString() {
		cfg.Password = v.String()
	}
	if v, ok := setup.With.Get("db"); ok && v.IsInt() {
		cfg.DB = int(v.Int())
	}
	if v, ok := setup.With.Get("prefix"); ok && v.IsString() {
		cfg.Prefix = v.String()
	}
	if v, ok := setup.With.Get("default_ttl_ms"); ok && v.IsInt() {
		cfg.DefaultTTL = time.Duration(v.Int()) * time.Millisecond
	}
	return cfg
}

// Client is the subset of go-redis methods the module needs, kept as an
// interface so tests can swap in a miniredis-backed client.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Close() error
}

// NewClient builds a go-redis client for cfg.
func NewClient(cfg Config) Client {
	return redis.NewClient(&redis.Options{Addr: cfg.Address, Password: cfg.Password, DB: cfg.DB})
}

// Factory registers the module's inbound channel and services get/set/delete
// requests against client until the channel closes, closing client on exit.
func Factory(client Client, cfg Config) func(ctx context.Context, setup protocol.ModuleSetup) {
	return func(ctx context.Context, setup protocol.ModuleSetup) {
		defer client.Close()
		inbound := make(chan protocol.ModulePackage)
		setup.SetupReply <- inbound

		for {
			select {
			case pkg, ok := <-inbound:
				if !ok {
					return
				}
				out := handle(ctx, client, cfg, pkg.Input)
				select {
				case pkg.Reply <- out:
				default:
					go func(p protocol.ModulePackage, v value.Value) { p.Reply <- v }(pkg, out)
				}
			case <-ctx.Done():
				return
			}
		}
	}
}

func handle(ctx context.Context, client Client, cfg Config, input value.Value) value.Value {
	op, ok := input.Get("op")
	if !ok || !op.IsString() {
		return failure("missing field 'op'")
	}
	keyVal, ok := input.Get("key")
	if !ok {
		return failure("missing field 'key'")
	}
	key := cfg.Prefix + keyVal.String()

	switch op.String() {
	case "get":
		v, err := client.Get(ctx, key).Result()
		if err == redis.Nil {
			return value.NewObject().Set("found", value.Bool(false))
		}
		if err != nil {
			return failure(err.Error())
		}
		return value.NewObject().Set("found", value.Bool(true)).Set("value", value.String(v))
	case "set":
		val, _ := input.Get("value")
		ttl := cfg.DefaultTTL
		if v, ok := input.Get("ttl_ms"); ok && v.IsInt() {
			ttl = time.Duration(v.Int()) * time.Millisecond
		}
		if err := client.Set(ctx, key, val.String(), ttl).Err(); err != nil {
			return failure(err.Error())
		}
		return value.NewObject().Set("ok", value.Bool(true))
	case "delete":
		if err := client.Del(ctx, key).Err(); err != nil {
			return failure(err.Error())
		}
		return value.NewObject().Set("ok", value.Bool(true))
	default:
		return failure(fmt.Sprintf("invalid op %q", op.String()))
	}
}

func failure(msg string) value.Value {
	return value.NewObject().Set("is_error", value.Bool(true)).Set("message", value.String(msg))
}
