package goRefresh

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// rotationThrottle counts Login and Refresh attempts in fixed Redis windows.
// The first INCR of a window sets the expiry, so windows reset on their own.
type rotationThrottle struct {
	redis  redis.UniversalClient
	config ThrottleConfig
	prefix string
}

func newRotationThrottle(client redis.UniversalClient, prefix string, cfg ThrottleConfig) *rotationThrottle {
	return &rotationThrottle{
		redis:  client,
		config: cfg,
		prefix: prefix,
	}
}

// Enforce checks every non-empty key against the attempt budget. A nil
// receiver enforces nothing.
func (t *rotationThrottle) Enforce(ctx context.Context, keys ...string) error {
	if t == nil || !t.config.Enabled {
		return nil
	}
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := t.enforceKey(ctx, t.prefix+":thr:"+key); err != nil {
			return err
		}
	}
	return nil
}

func (t *rotationThrottle) enforceKey(ctx context.Context, key string) error {
	count, err := t.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: throttle: %v", ErrInternal, err)
	}

	if count == 1 {
		if err := t.redis.Expire(ctx, key, t.config.Window).Err(); err != nil {
			return fmt.Errorf("%w: throttle: %v", ErrInternal, err)
		}
	}

	if count > int64(t.config.MaxAttempts) {
		return fmt.Errorf("%w: retry after %s", ErrRateLimited, t.config.Window)
	}
	return nil
}

func throttleUserKey(userID string) string {
	if userID == "" {
		return ""
	}
	return "usr:" + userID
}

func throttleIPKey(ip string) string {
	if ip == "" {
		return ""
	}
	return "ip:" + ip
}
