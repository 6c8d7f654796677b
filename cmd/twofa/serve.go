package main

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/layer-3/twofa/adapters/accounts"
	"github.com/layer-3/twofa/adapters/events"
	"github.com/layer-3/twofa/adapters/sender"
	"github.com/layer-3/twofa/adapters/store"
	"github.com/layer-3/twofa/adapters/tokenizer"
	"github.com/layer-3/twofa/config"
	"github.com/layer-3/twofa/internal/metrics"
	"github.com/layer-3/twofa/ports"
	"github.com/layer-3/twofa/service"
	"github.com/layer-3/twofa/throttle"
	httptransport "github.com/layer-3/twofa/transport/http"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP login service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			setupLogger(cfg.LogLevel, cfg.LogPretty)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg)
		},
	}
}

type sharedStore interface {
	ports.Store
	ports.CacheStore
}

// backend is the storage and messaging the service runs on
type backend struct {
	store     sharedStore
	publisher message.Publisher
	close     func()
}

func newBackend(ctx context.Context, redisURL string) (*backend, error) {
	logger := watermill.NewStdLogger(false, false)

	if redisURL == "" {
		log.Warn().Msg("REDIS_URL not set, throttles and invalidations are kept in process memory")

		memStore := store.NewMemoryStore()
		pubSub := gochannel.NewGoChannel(gochannel.Config{}, logger)
		return &backend{
			store:     memStore,
			publisher: pubSub,
			close: func() {
				_ = pubSub.Close()
				_ = memStore.Close()
			},
		}, nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	redisClient := redis.NewClient(opts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	publisher, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{
			Client: redisClient,
		},
		logger,
	)
	if err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("failed to create Redis publisher: %w", err)
	}

	return &backend{
		store:     store.NewRedisStore(redisClient),
		publisher: publisher,
		close: func() {
			_ = publisher.Close()
			_ = redisClient.Close()
		},
	}, nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	signKey, err := loadSigningKey(cfg.SigningKeyFile)
	if err != nil {
		return err
	}

	accountStore, err := loadAccounts(cfg.AccountsFile)
	if err != nil {
		return err
	}

	rate, err := cfg.ThrottleRate()
	if err != nil {
		return err
	}

	be, err := newBackend(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	defer be.close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	codeSender := sender.NewEmailSender(
		sender.NewSMTPTransport(sender.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
		}),
		cfg.EmailFrom,
		cfg.EmailSubjectOverride,
		cfg.EmailBodyOverride,
	)

	codeTokens, err := service.NewCodeTokenManager(
		cfg.CodeToken(),
		tokenizer.NewCodeTokenizer(cfg.CodeTokenSecretKey),
		codeSender,
	)
	if err != nil {
		return err
	}

	authService := service.NewAuthService(
		codeTokens,
		accountStore,
		tokenizer.NewJWTTokenizer(signKey),
		be.store,
		events.NewWatermillPublisher(be.publisher),
		throttle.NewSlidingWindow(be.store, rate),
		throttle.NewIntervalGate(be.store, cfg.AuthTokenRetryWaitTime),
		service.WithMetrics(m),
		service.WithTokenTTLs(cfg.AccessTokenTTL, cfg.RefreshTokenTTL),
	)

	router, err := httptransport.SetupRouter(authService, registry, cfg.TrustedProxies)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}

// loadSigningKey reads a PEM encoded EC private key (SEC 1 or PKCS #8).
// Without a path an ephemeral P-256 key is generated.
func loadSigningKey(path string) (*ecdsa.PrivateKey, error) {
	if path == "" {
		log.Warn().Msg("SIGNING_KEY_FILE not set, using an ephemeral signing key")
		return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read signing key: %w", err)
	}

	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("no PEM block in %s", path)
	}

	if key, err := x509.ParseECPrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse signing key: %w", err)
	}

	key, ok := parsed.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("signing key in %s is not an EC key", path)
	}

	return key, nil
}

func loadAccounts(path string) (*accounts.MemoryAccountStore, error) {
	if path == "" {
		log.Warn().Msg("ACCOUNTS_FILE not set, no account can log in")
		return accounts.NewMemoryAccountStore(), nil
	}

	return accounts.LoadFile(path)
}
