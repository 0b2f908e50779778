package main

import (
	"context"
	"crypto/tls"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"taskboard-api/api"
	"taskboard-api/storage"
)

func main() {
	_ = godotenv.Load()

	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("missing DATABASE_URL")
	}
	store, err := storage.Open(dsn)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	initCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := store.Ping(initCtx); err != nil {
		log.Fatalf("database unreachable: %v", err)
	}
	if err := storage.InitSchema(initCtx, store.DB()); err != nil {
		log.Fatalf("schema init: %v", err)
	}
	cancel()

	kv := buildCacheKV()
	cacheTTL := storage.DefaultCacheTTL
	if v := os.Getenv("CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			log.Fatalf("invalid CACHE_TTL: %v", err)
		}
		cacheTTL = d
	}
	var backend api.Storage = store
	if kv != nil {
		backend = storage.NewCache(store, kv, cacheTTL)
	}

	sessionSecret := os.Getenv("SESSION_SECRET")
	if sessionSecret == "" {
		log.Fatal("missing SESSION_SECRET")
	}
	sessionTTL := api.DefaultSessionTTL
	if v := os.Getenv("SESSION_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			log.Fatalf("invalid SESSION_TTL: %v", err)
		}
		sessionTTL = d
	}
	sessions := api.NewSessionAuth([]byte(sessionSecret), sessionTTL)

	var gate api.Authenticator = sessions
	switch mode := strings.ToLower(os.Getenv("AUTH_MODE")); mode {
	case "", "session":
	case "shared-secret":
		secret := os.Getenv("SHARED_SECRET")
		if secret == "" {
			log.Fatal("SHARED_SECRET must be set when AUTH_MODE=shared-secret")
		}
		legacyUser := int64(1)
		if v := os.Getenv("LEGACY_USER_ID"); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil || n <= 0 {
				log.Fatalf("invalid LEGACY_USER_ID: %v", err)
			}
			legacyUser = n
		}
		gate = api.NewSharedSecretAuth(secret, legacyUser)
	default:
		log.Fatalf("unsupported AUTH_MODE %q", mode)
	}

	bcryptCost := 0
	if v := os.Getenv("BCRYPT_COST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			log.Fatalf("invalid BCRYPT_COST: %v", err)
		}
		bcryptCost = n
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(api.DecompressRequests())

	logger := log.New()
	api.Register(e, backend, gate, sessions, bcryptCost, logger)

	listenAddr := ":8080"
	if val, ok := os.LookupEnv("PORT"); ok {
		listenAddr = ":" + val
	}

	e.Logger.Fatal(e.Start(listenAddr))
}

// buildCacheKV selects the cache backend: an in-process LRU by default, Redis
// when configured, or nothing at all.
func buildCacheKV() storage.KV {
	switch backend := strings.ToLower(os.Getenv("CACHE_BACKEND")); backend {
	case "off":
		return nil
	case "redis":
		redisConn := os.Getenv("REDIS_CONNECTION_STRING")
		if redisConn == "" {
			log.Fatal("REDIS_CONNECTION_STRING must be set when CACHE_BACKEND=redis")
		}
		redisOpts, err := redis.ParseURL(redisConn)
		if err != nil {
			parts := strings.Split(redisConn, ",")
			redisOpts = &redis.Options{Addr: parts[0]}
			for _, p := range parts[1:] {
				kv := strings.SplitN(p, "=", 2)
				if len(kv) != 2 {
					continue
				}
				switch strings.ToLower(kv[0]) {
				case "password":
					redisOpts.Password = kv[1]
				case "ssl":
					if strings.ToLower(kv[1]) == "true" {
						redisOpts.TLSConfig = &tls.Config{}
					}
				}
			}
		}
		return storage.NewRedisKV(redis.NewClient(redisOpts))
	case "", "memory":
		capacity := storage.DefaultCacheCapacity
		if v := os.Getenv("CACHE_CAPACITY"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				log.Fatalf("invalid CACHE_CAPACITY: %v", err)
			}
			capacity = n
		}
		return storage.NewMemoryKV(capacity)
	default:
		log.Fatalf("unsupported CACHE_BACKEND %q", backend)
		return nil
	}
}
