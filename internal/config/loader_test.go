package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandEnv(t *testing.T) {
	t.Run("env value wins over default", func(t *testing.T) {
		t.Setenv("KB_TEST_HOST", "redis.internal")
		assert.Equal(t, "redis.internal:6379", expandEnv("${KB_TEST_HOST:localhost}:6379"))
	})

	t.Run("missing env falls back to default", func(t *testing.T) {
		assert.Equal(t, "localhost:6379", expandEnv("${KB_TEST_MISSING:localhost}:6379"))
	})

	t.Run("empty default is allowed", func(t *testing.T) {
		assert.Equal(t, "", expandEnv("${KB_TEST_MISSING:}"))
	})

	t.Run("no default keeps placeholder", func(t *testing.T) {
		assert.Equal(t, "${KB_TEST_MISSING}", expandEnv("${KB_TEST_MISSING}"))
	})

	t.Run("plain string untouched", func(t *testing.T) {
		assert.Equal(t, "no placeholders here", expandEnv("no placeholders here"))
	})
}
