package cache

import (
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestRedisKeyPrefix(t *testing.T) {
	for _, tc := range []struct {
		prefix string
		want   string
	}{
		{"energypull", "energypull:pipeline:run"},
		{"energypull:", "energypull:pipeline:run"},
		{"", "pipeline:run"},
	} {
		cfg := &RedisConfig{}
		WithRedisPrefix(tc.prefix)(cfg)

		// no command is sent, so the client never dials
		c := newRedisCache(redis.NewClient(&redis.Options{Addr: "localhost:0"}), cfg.Prefix)
		assert.Equal(t, tc.want, c.wrapKey("pipeline:run"), "prefix %q", tc.prefix)
		assert.Equal(t, []string{tc.want}, c.wrapKeys("pipeline:run"))
		_ = c.Close()
	}
}
