package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"life.tape/config"
	"life.tape/internal/api"
	"life.tape/internal/audio"
	"life.tape/internal/auth"
	"life.tape/internal/logging"
	"life.tape/internal/store"

	"github.com/redis/go-redis/v9"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	mintKey := flag.String("mint-key", "", "print an API key for the given role (anon or service) and exit")
	keyTTL := flag.Duration("key-ttl", 0, "lifetime of a minted key, 0 for no expiry")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	if *mintKey != "" {
		if err := printKey(cfg, *mintKey, *keyTTL); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	log := logging.NewJSON(os.Stdout, cfg.Log.Level)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log logging.Logger) error {
	st, err := initStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	var recordings api.AudioStorage
	if cfg.Audio.Bucket != "" {
		s, err := audio.New(ctx, audio.Config{
			Endpoint:      cfg.Audio.Endpoint,
			Region:        cfg.Audio.Region,
			AccessKey:     cfg.Audio.AccessKey,
			SecretKey:     cfg.Audio.SecretKey,
			Bucket:        cfg.Audio.Bucket,
			PresignExpiry: cfg.Audio.PresignExpiry,
		})
		if err != nil {
			return fmt.Errorf("audio storage: %w", err)
		}
		recordings = s
	}

	router := api.SetupRouter(st, recordings, cfg, log)

	log.Info(ctx, "server starting",
		"addr", cfg.Addr(),
		"store", cfg.Store.Type,
		"auth", cfg.Auth.Enabled,
		"audio", recordings != nil,
	)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info(ctx, "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func initStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Type {
	case "redis":
		st, err := store.NewRedisStore(&redis.Options{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("redis connection failed: %w", err)
		}
		return st, nil
	case "postgres":
		st, err := store.NewPostgresStore(ctx, cfg.Store.Postgres.DSN)
		if err != nil {
			return nil, fmt.Errorf("postgres connection failed: %w", err)
		}
		return st, nil
	default:
		return store.NewMemoryStore(), nil
	}
}

func printKey(cfg *config.Config, roleName string, ttl time.Duration) error {
	role, err := auth.ParseRole(roleName)
	if err != nil {
		return err
	}
	if cfg.Auth.Secret == "" {
		return errors.New("auth secret is not configured")
	}
	key, err := auth.GenerateKey(role, []byte(cfg.Auth.Secret), ttl)
	if err != nil {
		return err
	}
	fmt.Println(key)
	return nil
}
