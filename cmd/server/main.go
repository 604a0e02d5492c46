package main

import (
	"context"
	"crypto/tls"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/viper"

	"github.com/parlabank/backend/internal/admin"
	"github.com/parlabank/backend/internal/config"
	"github.com/parlabank/backend/internal/database"
	"github.com/parlabank/backend/internal/intent"
	"github.com/parlabank/backend/internal/server"
	"github.com/parlabank/backend/internal/services"
	"github.com/parlabank/backend/internal/session"
	"github.com/parlabank/backend/internal/store"
)

type statsSource struct {
	registry *services.SessionRegistry
	bank     *server.Server
	st       store.Store
}

func (s *statsSource) ActiveSessions() int { return s.registry.Active() }
func (s *statsSource) Connections() int    { return s.bank.ConnCount() }
func (s *statsSource) Accounts() int       { return s.st.Count() }

func main() {
	// Initialize config
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	viper.BindEnv("server.bank_addr", "BANK_ADDR")
	viper.BindEnv("server.admin_enabled", "ADMIN_ENABLED")
	viper.BindEnv("server.admin_addr", "ADMIN_ADDR")
	viper.BindEnv("server.tls_cert_file", "TLS_CERT_FILE")
	viper.BindEnv("server.tls_key_file", "TLS_KEY_FILE")

	viper.BindEnv("store.backend", "STORE_BACKEND")
	viper.BindEnv("store.path", "STORE_PATH")
	viper.BindEnv("settlement.outbox_dir", "SETTLEMENT_OUTBOX_DIR")

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("intent.endpoint", "INTENT_ENDPOINT")
	viper.BindEnv("intent.api_key", "INTENT_API_KEY")
	viper.BindEnv("intent.model", "INTENT_MODEL")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("argon2.time", "ARGON2_TIME")
	viper.BindEnv("argon2.memory", "ARGON2_MEMORY")
	viper.BindEnv("argon2.threads", "ARGON2_THREADS")
	viper.BindEnv("argon2.key_length", "ARGON2_KEY_LENGTH")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	cfg := config.LoadServerConfig()

	// Account store
	var st store.Store
	switch cfg.StoreBackend {
	case "postgres":
		db, err := database.InitDB()
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		st = store.NewPostgresStore(db)
	default:
		st = store.NewFileStore(cfg.StorePath)
	}
	users, err := st.Load()
	if err != nil {
		log.Fatalf("Failed to load account store: %v", err)
	}
	log.Printf("Loaded %d accounts", len(users))
	defer st.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Intent resolver
	var resolver intent.Resolver
	if cfg.IntentEndpoint == "" {
		log.Println("No intent endpoint configured, natural language requests will not be interpreted")
		resolver = intent.Disabled{}
	} else {
		resolver = intent.NewHTTPResolver(cfg.IntentEndpoint, cfg.IntentAPIKey, cfg.IntentModel)
		if redisClient != nil {
			resolver = intent.NewCachedResolver(resolver, redisClient, cfg.IntentCacheTTL)
		}
	}

	// Core services
	registry := services.NewSessionRegistry()
	auth := services.NewAuthService(st, registry)
	settlement := services.NewSettlementService(cfg.OutboxDir)
	engine := services.NewTransactionEngine(st, settlement)

	// TLS
	var tlsConfig *tls.Config
	if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.TLSCertFile, cfg.TLSKeyFile)
		if err != nil {
			log.Fatalf("Failed to load TLS key pair: %v", err)
		}
		tlsConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
	}

	bankServer := server.New(cfg.BankAddr, tlsConfig, func(ctx context.Context, conn net.Conn) {
		session.New(session.NewConn(conn), auth, engine, registry, resolver).Run(ctx)
	})

	// Admin surface
	var adminServer *http.Server
	if cfg.AdminEnabled {
		api := admin.New(&statsSource{
			registry: registry,
			bank:     bankServer,
			st:       st,
		})
		adminServer = &http.Server{
			Addr:         cfg.AdminAddr,
			Handler:      api.Router(),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			log.Printf("Admin server listening on %s", cfg.AdminAddr)
			if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Admin server failed: %v", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := bankServer.ListenAndServe(ctx); err != nil {
			log.Fatalf("Bank server failed: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := bankServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Bank server forced to shut down: %v", err)
	}
	if adminServer != nil {
		if err := adminServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Admin server forced to shut down: %v", err)
		}
	}
	log.Println("Server exited")
}
