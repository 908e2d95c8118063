package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ahmadarif238/vivagraph-ai/config"
)

// =============================================================================
// 🧪 Manager 测试
// =============================================================================

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *Manager) {
	t.Helper()
	mr := miniredis.RunT(t)

	cfg := DefaultConfig()
	cfg.Addr = mr.Addr()
	cfg.DefaultTTL = time.Minute
	cfg.HealthCheckInterval = 0

	manager, err := NewManager(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })
	return mr, manager
}

func TestNewManager_Unreachable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:1"
	cfg.MaxRetries = 0
	_, err := NewManager(cfg, nil)
	assert.ErrorContains(t, err, "failed to connect to redis")
}

func TestConfigFromRedis(t *testing.T) {
	cfg := ConfigFromRedis(config.RedisConfig{Addr: "redis:6379", DB: 2, PoolSize: 0, TLSEnabled: true}, time.Hour)
	assert.Equal(t, "redis:6379", cfg.Addr)
	assert.Equal(t, 2, cfg.DB)
	assert.Equal(t, 10, cfg.PoolSize)
	assert.True(t, cfg.TLSEnabled)
	assert.Equal(t, time.Hour, cfg.DefaultTTL)
}

func TestManager_SetGetDelete(t *testing.T) {
	mr, m := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", "v", 0))
	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
	// ttl 为 0 时使用 DefaultTTL
	assert.Equal(t, time.Minute, mr.TTL("k"))

	n, err := m.Exists(ctx, "k", "missing")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	require.NoError(t, m.Delete(ctx, "k"))
	_, err = m.Get(ctx, "k")
	assert.True(t, IsCacheMiss(err))
	assert.NoError(t, m.Delete(ctx))
}

func TestManager_JSON(t *testing.T) {
	_, m := setupTestRedis(t)
	ctx := context.Background()

	type payload struct {
		Topic string `json:"topic"`
		Turns int    `json:"turns"`
	}
	require.NoError(t, m.SetJSON(ctx, "j", payload{Topic: "OS", Turns: 4}, time.Minute))

	var out payload
	require.NoError(t, m.GetJSON(ctx, "j", &out))
	assert.Equal(t, payload{Topic: "OS", Turns: 4}, out)

	require.NoError(t, m.Set(ctx, "bad", "{not json", time.Minute))
	assert.ErrorContains(t, m.GetJSON(ctx, "bad", &out), "unmarshal")
}

func TestManager_ExpireAndKeys(t *testing.T) {
	mr, m := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "cp:a", "1", time.Minute))
	require.NoError(t, m.Set(ctx, "cp:b", "2", time.Minute))
	require.NoError(t, m.Set(ctx, "other", "3", time.Minute))

	require.NoError(t, m.Expire(ctx, "cp:a", time.Second))
	assert.Equal(t, time.Second, mr.TTL("cp:a"))

	keys, err := m.Keys(ctx, "cp:*")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"cp:a", "cp:b"}, keys)

	mr.FastForward(2 * time.Second)
	_, err = m.Get(ctx, "cp:a")
	assert.True(t, IsCacheMiss(err))
}

func TestManager_Closed(t *testing.T) {
	_, m := setupTestRedis(t)
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	ctx := context.Background()
	assert.Error(t, m.Ping(ctx))
	_, err := m.Get(ctx, "k")
	assert.Error(t, err)
	assert.Error(t, m.Set(ctx, "k", "v", 0))
}

func TestParseInfo(t *testing.T) {
	info := "# Stats\r\nkeyspace_hits:12\r\nkeyspace_misses:3\r\n# Memory\r\nused_memory:2048\r\n# Clients\r\nconnected_clients:5\r\n"
	stats := parseInfo(info)
	assert.EqualValues(t, 12, stats.Hits)
	assert.EqualValues(t, 3, stats.Misses)
	assert.EqualValues(t, 2048, stats.UsedMemory)
	assert.Equal(t, 5, stats.Connections)
}

func TestManager_UpdateJSON(t *testing.T) {
	mr, m := setupTestRedis(t)
	ctx := context.Background()

	type doc struct {
		N int `json:"n"`
	}
	bump := func(current []byte) (any, error) {
		var d doc
		if current != nil {
			require.NoError(t, json.Unmarshal(current, &d))
		}
		d.N++
		return d, nil
	}

	require.NoError(t, m.UpdateJSON(ctx, "doc", 0, bump))
	require.NoError(t, m.UpdateJSON(ctx, "doc", 0, bump))

	var got doc
	require.NoError(t, m.GetJSON(ctx, "doc", &got))
	assert.Equal(t, 2, got.N)
	// ttl 为 0 时不过期，即使配置了 DefaultTTL
	assert.Zero(t, mr.TTL("doc"))

	require.NoError(t, m.UpdateJSON(ctx, "short", time.Second, bump))
	assert.Equal(t, time.Second, mr.TTL("short"))
}

func TestManager_UpdateJSONAbortAndConflict(t *testing.T) {
	_, m := setupTestRedis(t)
	ctx := context.Background()
	require.NoError(t, m.Set(ctx, "k", `"old"`, 0))

	stop := errors.New("stale")
	err := m.UpdateJSON(ctx, "k", 0, func([]byte) (any, error) { return nil, stop })
	assert.ErrorIs(t, err, stop)
	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, `"old"`, got)

	// 在读取与提交之间被其他写入者修改
	err = m.UpdateJSON(ctx, "k", 0, func([]byte) (any, error) {
		require.NoError(t, m.Set(ctx, "k", `"concurrent"`, 0))
		return "mine", nil
	})
	assert.ErrorIs(t, err, ErrConflict)
	got, err = m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, `"concurrent"`, got)
}
