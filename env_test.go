package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/finchinslc/openclaw-board/broadcast"
	"github.com/finchinslc/openclaw-board/storage"
	"github.com/finchinslc/openclaw-board/webhook"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "DATABASE_URL", "REDIS_URL", "REDIS_CHANNEL", "CORS_ORIGINS", "WEBHOOK_TIMEOUT", "SLOW_QUERY_MS"} {
		t.Setenv(key, "")
	}
	cfg := loadConfig()
	require.Equal(t, "8080", cfg.port)
	require.Equal(t, storage.DefaultDSN, cfg.databaseURL)
	require.Equal(t, broadcast.DefaultChannel, cfg.redisChannel)
	require.Equal(t, []string{"*"}, cfg.corsOrigins)
	require.Equal(t, webhook.DefaultTimeout, cfg.webhookTimeout)
	require.Equal(t, 200*time.Millisecond, cfg.slowQuery)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("WEBHOOK_TIMEOUT", "3")
	t.Setenv("TASKS_CACHE_TTL", "1m")
	t.Setenv("CORS_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("LOCAL_AUTH_MODE", "HS256")

	cfg := loadConfig()
	require.Equal(t, "9090", cfg.port)
	require.Equal(t, 3*time.Second, cfg.webhookTimeout)
	require.Equal(t, time.Minute, cfg.cacheTTL)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.corsOrigins)
	require.Equal(t, "hs256", cfg.localAuthMode)
}

func TestRedisOptions(t *testing.T) {
	opts := redisOptions("redis://:secret@localhost:6380/2")
	require.Equal(t, "localhost:6380", opts.Addr)
	require.Equal(t, "secret", opts.Password)
	require.Equal(t, 2, opts.DB)

	opts = redisOptions("cache.example.net:6380,password=pw,ssl=True,abortConnect=False")
	require.Equal(t, "cache.example.net:6380", opts.Addr)
	require.Equal(t, "pw", opts.Password)
	require.NotNil(t, opts.TLSConfig)
}

func TestBuildAuth(t *testing.T) {
	auth, err := buildAuth(config{})
	require.NoError(t, err)
	require.Nil(t, auth)

	_, err = buildAuth(config{localAuthMode: "hs256"})
	require.Error(t, err)

	_, err = buildAuth(config{localAuthMode: "rs512"})
	require.Error(t, err)

	auth, err = buildAuth(config{localAuthMode: "hs256", localAuthSecret: "shh"})
	require.NoError(t, err)
	require.NotNil(t, auth)

	_, err = buildAuth(config{auth0Domain: "tenant.example"})
	require.Error(t, err)
}
