package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/stepcanvas/stepcanvas/handlers"
	"github.com/stepcanvas/stepcanvas/internal/authing"
	"github.com/stepcanvas/stepcanvas/internal/caption"
	"github.com/stepcanvas/stepcanvas/internal/config"
	"github.com/stepcanvas/stepcanvas/internal/database"
	"github.com/stepcanvas/stepcanvas/internal/friending"
	"github.com/stepcanvas/stepcanvas/internal/imaging"
	"github.com/stepcanvas/stepcanvas/internal/oidc"
	"github.com/stepcanvas/stepcanvas/internal/posting"
	"github.com/stepcanvas/stepcanvas/internal/router"
	"github.com/stepcanvas/stepcanvas/internal/sessioning"
	"github.com/stepcanvas/stepcanvas/internal/storage"
	"github.com/stepcanvas/stepcanvas/internal/store"
	"github.com/stepcanvas/stepcanvas/internal/wordgen"
	"github.com/stepcanvas/stepcanvas/pkg/logger"
	"github.com/stepcanvas/stepcanvas/pkg/metrics"
	"github.com/stepcanvas/stepcanvas/pkg/middleware"
)

var startTime = time.Now()

func main() {
	// logging first; controlled with LOG_LEVEL (debug|info|warn|error|fatal)
	logger.Init(os.Getenv("LOG_LEVEL"))
	logger.Debugf("startup: LOG_LEVEL=%s", logger.LevelString())

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: mongo=%v redis=%v openai=%v minio=%v",
		cfg.MongoDB.URI != "", cfg.Redis.Host != "", cfg.OpenAI.APIKey != "", cfg.MinIO.Endpoint != "")

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	// Lightweight CORS middleware for dev/test: set common headers and respond
	// to OPTIONS. Production should use a stricter policy.
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(200)
			return
		}
		c.Next()
	})

	ctx := context.Background()

	// Redis early so both sessions and the rate limiter can use it
	var redisClient *redis.Client
	if cfg.Redis.Host != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s:%s): %v", cfg.Redis.Host, cfg.Redis.Port, err)
			redisClient = nil
		} else {
			logger.Infof("Connected to Redis: %s:%s", cfg.Redis.Host, cfg.Redis.Port)
		}
	}

	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && redisClient != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			r.Use(middleware.RedisRateLimitMiddleware(redisClient, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	// session storage: Redis when available, in-process otherwise
	var sessionRepo sessioning.Repository
	if redisClient != nil {
		sessionRepo = sessioning.NewRedisRepository(redisClient, "session:", cfg.Session.TTL)
		logger.Infof("Using Redis for session storage")
	} else {
		sessionRepo = sessioning.NewMemoryRepository()
		logger.Warnf("Redis unavailable; sessions are process-local")
	}
	sessionSvc := sessioning.NewService(sessionRepo)

	r.Use(middleware.SessionMiddleware(sessionSvc, middleware.SessionConfig{
		CookieName: cfg.Session.CookieName,
		Secret:     cfg.Session.Secret,
		TTLSeconds: int(cfg.Session.TTL.Seconds()),
		Secure:     cfg.Server.Environment == "production",
	}))

	// MongoDB with retry to tolerate startup races
	var mongoClient *mongo.Client
	if cfg.MongoDB.URI != "" {
		mongoClient, err = database.ConnectWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, 5)
		if err != nil {
			logger.Fatalf("could not connect to MongoDB: %v", err)
		}
		defer func() { _ = mongoClient.Disconnect(ctx) }()
		logger.Infof("Connected to MongoDB: %s", cfg.MongoDB.Database)
	} else {
		logger.Fatalf("MONGODB_URI is required")
	}
	db := mongoClient.Database(cfg.MongoDB.Database)

	// optional OIDC verifier for SSO login
	var verifier oidc.TokenVerifier
	if cfg.OIDC.Issuer != "" && cfg.OIDC.ClientID != "" {
		ver, err := oidc.NewVerifier(ctx, cfg.OIDC.Issuer, cfg.OIDC.ClientID)
		if err != nil {
			logger.Warnf("failed to initialize OIDC verifier: %v", err)
		} else {
			verifier = ver
		}
	}
	if verifier == nil && strings.EqualFold(strings.TrimSpace(os.Getenv("ALLOW_INSECURE_TOKEN")), "true") {
		logger.Warn("enabling insecure OIDC verifier (integration mode)")
		verifier = oidc.NewInsecureVerifier()
	}

	// optional object storage for original image payloads
	var objects storage.ObjectStore
	if cfg.MinIO.Endpoint != "" {
		ms, err := storage.NewMinIO(storage.Config{
			Endpoint:  cfg.MinIO.Endpoint,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			UseSSL:    cfg.MinIO.UseSSL,
			Bucket:    cfg.MinIO.Bucket,
		})
		if err != nil {
			logger.Warnf("failed to initialize MinIO: %v", err)
		} else {
			objects = ms
			logger.Infof("Image archive enabled: %s/%s", cfg.MinIO.Endpoint, cfg.MinIO.Bucket)
		}
	}

	completer := wordgen.NewOpenAI(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model)
	captioner := caption.NewHuggingFace(cfg.HuggingFace.Endpoint, cfg.HuggingFace.Token)

	authSvc := authing.NewService(store.NewCollection[authing.UserDoc](db, "users"))
	postSvc := posting.NewService(store.NewCollection[posting.PostDoc](db, "posts"))
	friendSvc := friending.NewService(store.NewCollection[friending.RequestDoc](db, "friendRequests"))
	imageSvc := imaging.NewService(store.NewCollection[imaging.ImageDoc](db, "images"), captioner, completer, objects)

	reg := router.NewRegistry()
	handlers.NewRoutes(authSvc, postSvc, friendSvc, imageSvc, completer, verifier).Register(reg)
	r.NoRoute(reg.GinHandler())

	handlers.RegisterSwagger(r)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	// readiness: 200 only when critical dependencies are reachable
	r.GET("/ready", func(c *gin.Context) {
		ready := true
		deps := map[string]bool{}

		deps["mongo"] = mongoClient.Ping(c.Request.Context(), nil) == nil
		if !deps["mongo"] {
			ready = false
		}

		if redisClient != nil {
			deps["redis"] = redisClient.Ping(c.Request.Context()).Err() == nil
			if !deps["redis"] {
				ready = false
			}
		} else {
			deps["redis"] = true
		}

		status := http.StatusOK
		state := "ready"
		if !ready {
			status = http.StatusServiceUnavailable
			state = "not_ready"
		}
		c.JSON(status, gin.H{"status": state, "deps": deps, "uptime": time.Since(startTime).String()})
	})

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	logger.Infof("Starting stepcanvas on %s", addr)
	if err := r.Run(addr); err != nil {
		logger.Fatalf("server failed: %v", err)
	}
}
