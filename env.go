package main

import (
	"crypto/tls"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/finchinslc/openclaw-board/broadcast"
	"github.com/finchinslc/openclaw-board/storage"
	"github.com/finchinslc/openclaw-board/webhook"
)

type config struct {
	port         string
	debug        bool
	databaseURL  string
	slowQuery    time.Duration
	redisURL     string
	redisChannel string
	cacheTTL     time.Duration
	idemTTL      time.Duration
	corsOrigins  []string
	bodyLimit    string

	auth0Domain     string
	auth0Audience   string
	localAuthMode   string
	localAuthSecret string
	jwksCacheTTL    time.Duration

	storageConn  string
	archiveTable string
	eventsQueue  string

	webhookTimeout time.Duration
}

func loadConfig() config {
	return config{
		port:         envString("PORT", "8080"),
		debug:        envBool("DEBUG", false),
		databaseURL:  envString("DATABASE_URL", storage.DefaultDSN),
		slowQuery:    time.Duration(envInt("SLOW_QUERY_MS", 200)) * time.Millisecond,
		redisURL:     envString("REDIS_URL", ""),
		redisChannel: envString("REDIS_CHANNEL", broadcast.DefaultChannel),
		cacheTTL:     envDur("TASKS_CACHE_TTL", 30*time.Second),
		idemTTL:      envDur("IDEMPOTENCY_TTL", 24*time.Hour),
		corsOrigins:  envList("CORS_ORIGINS", []string{"*"}),
		bodyLimit:    envString("BODY_LIMIT", "1M"),

		auth0Domain:     envString("AUTH0_DOMAIN", ""),
		auth0Audience:   envString("AUTH0_AUDIENCE", ""),
		localAuthMode:   strings.ToLower(envString("LOCAL_AUTH_MODE", "")),
		localAuthSecret: envString("LOCAL_AUTH_SHARED_SECRET", ""),
		jwksCacheTTL:    envDur("JWKS_CACHE_TTL", 15*time.Minute),

		storageConn:  envString("STORAGE_CONNECTION_STRING", ""),
		archiveTable: envString("ARCHIVE_TABLE", ""),
		eventsQueue:  envString("TASK_EVENTS_QUEUE", ""),

		webhookTimeout: envDur("WEBHOOK_TIMEOUT", webhook.DefaultTimeout),
	}
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func envBool(key string, def bool) bool {
	v := envString(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Fatalf("invalid %s: %v", key, err)
	}
	return b
}

func envInt(key string, def int) int {
	v := envString(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("invalid %s: %v", key, err)
	}
	if n <= 0 {
		log.Fatalf("invalid %s: must be greater than zero", key)
	}
	return n
}

func envDur(key string, def time.Duration) time.Duration {
	v := envString(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		// Bare integers are seconds.
		secs, nerr := strconv.Atoi(v)
		if nerr != nil {
			log.Fatalf("invalid %s: %v", key, err)
		}
		d = time.Duration(secs) * time.Second
	}
	if d < 0 {
		log.Fatalf("invalid %s: must not be negative", key)
	}
	return d
}

func envList(key string, def []string) []string {
	v := envString(key, "")
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

// redisOptions accepts redis:// URLs as well as the
// "host:port,password=...,ssl=True" form used by Azure Cache for Redis.
func redisOptions(conn string) *redis.Options {
	opts, err := redis.ParseURL(conn)
	if err == nil {
		return opts
	}
	parts := strings.Split(conn, ",")
	opts = &redis.Options{Addr: strings.TrimSpace(parts[0])}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(kv[0])) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.EqualFold(strings.TrimSpace(kv[1]), "true") {
				opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
			}
		case "db":
			if n, err := strconv.Atoi(kv[1]); err == nil {
				opts.DB = n
			}
		}
	}
	return opts
}
