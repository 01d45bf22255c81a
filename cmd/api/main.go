package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/visaprep/internal/api"
	"github.com/nikhilbhutani/visaprep/internal/archive"
	"github.com/nikhilbhutani/visaprep/internal/auth"
	"github.com/nikhilbhutani/visaprep/internal/config"
	"github.com/nikhilbhutani/visaprep/internal/interview"
	"github.com/nikhilbhutani/visaprep/internal/llm"
	"github.com/nikhilbhutani/visaprep/internal/multimodal/stt"
	"github.com/nikhilbhutani/visaprep/internal/multimodal/tts"
	"github.com/nikhilbhutani/visaprep/internal/notify"
	"github.com/nikhilbhutani/visaprep/internal/questions"
	"github.com/nikhilbhutani/visaprep/internal/session"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("could not read .env", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	bank, err := questions.Load(cfg.Interview.QuestionsFile)
	if err != nil {
		slog.Error("failed to load questions", "error", err)
		os.Exit(1)
	}

	var awsCfg aws.Config
	if needsAWS(cfg) {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
		if err != nil {
			slog.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
	}

	// Redis backs sessions only when selected.
	var rdb *redis.Client
	var store session.Store
	switch cfg.Session.Backend {
	case "redis":
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Error("redis unavailable", "addr", cfg.Redis.Addr, "error", err)
			os.Exit(1)
		}
		store = session.NewRedisStore(rdb, cfg.Session.TTL)
	default:
		mem := session.NewMemoryStore(cfg.Session.TTL)
		defer mem.Close()
		store = mem
	}

	// Archive is optional; finalized interviews are dropped without a database.
	var db *pgxpool.Pool
	var arch archive.Archive = archive.Noop{}
	if cfg.Database.URL != "" {
		db, err = archive.Connect(ctx, cfg.Database)
		if err != nil {
			slog.Warn("database unavailable, running without archive", "error", err)
		} else {
			defer db.Close()
			if err := archive.Migrate(ctx, db, cfg.Database.MigrationsPath); err != nil {
				slog.Warn("migrations failed", "error", err)
			}
			arch = archive.NewPostgres(db)
		}
	}

	var extra []llm.Provider
	if cfg.LLM.DefaultProvider == "bedrock" || cfg.LLM.FallbackProvider == "bedrock" {
		extra = append(extra, llm.NewBedrockProvider(awsCfg, cfg.LLM.BedrockModel))
	}
	gateway := llm.NewGateway(cfg.LLM, extra...)

	transcriber, err := stt.FromConfig(cfg.STT)
	if err != nil {
		slog.Error("failed to configure speech-to-text", "error", err)
		os.Exit(1)
	}
	speech, err := tts.FromConfig(cfg.TTS)
	if err != nil {
		slog.Error("failed to configure text-to-speech", "error", err)
		os.Exit(1)
	}
	notifier, err := notify.FromConfig(cfg.Email, awsCfg)
	if err != nil {
		slog.Error("failed to configure email", "error", err)
		os.Exit(1)
	}

	svc := interview.NewService(interview.Deps{
		Store:       store,
		Questions:   bank,
		Generator:   gateway,
		Transcriber: transcriber,
		Notifier:    notifier,
		Archive:     arch,
		Speech:      speech,
	}, interview.Options{
		LLMTimeout:     cfg.LLM.Timeout,
		STTTimeout:     cfg.STT.Timeout,
		EmailTimeout:   cfg.Email.Timeout,
		UploadDir:      cfg.Interview.UploadDir,
		Language:       cfg.STT.Language,
		From:           cfg.Email.From,
		FallbackDomain: cfg.Email.FallbackDomain,
	})

	cookies, err := auth.NewSessionCookies(auth.CookieConfig{
		Secret:     cfg.Session.Secret,
		CookieName: cfg.Session.CookieName,
		TTL:        cfg.Session.TTL,
		Secure:     cfg.Session.Secure,
	})
	if err != nil {
		slog.Error("failed to set up session cookies", "error", err)
		os.Exit(1)
	}
	if cfg.Session.Secret == "" {
		slog.Warn("SESSION_SECRET not set, sessions will not survive a restart")
	}

	router := api.NewRouter(cfg, svc, cookies, db, rdb)
	defer router.Close()

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router.Setup(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.STT.Timeout + cfg.LLM.Timeout + 15*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("starting API server",
			"addr", cfg.Addr(),
			"session_backend", cfg.Session.Backend,
			"llm_provider", cfg.LLM.DefaultProvider,
			"stt_backend", transcriber.Name(),
			"email_backend", notifier.Name(),
			"questions", bank.Len(),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}
	slog.Info("server stopped")
}

func needsAWS(cfg *config.Config) bool {
	return cfg.LLM.DefaultProvider == "bedrock" ||
		cfg.LLM.FallbackProvider == "bedrock" ||
		cfg.Email.Backend == "ses"
}
