package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"propchat/internal/api"
	"propchat/internal/config"
	"propchat/internal/constants"
	"propchat/internal/db"
	"propchat/internal/logger"
	"propchat/internal/metrics"
	"propchat/internal/models"
	"propchat/internal/notify"
	"propchat/internal/utils"
)

func main() {
	configPath := flag.String("config", "", "optional config file (yaml, json or toml)")
	flag.Parse()

	// --- Блок инициализации ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("could not load .env file, relying on the process environment")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load configuration")
	}

	baseLog := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.IsDev(), Service: "propchat-server"})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, logger.Component(baseLog, "db"))
	if err != nil {
		baseLog.Fatal().Err(err).Msg("init store")
	}
	defer store.Close()

	var notifier notify.Notifier = notify.Noop{}
	if cfg.TelegramToken != "" {
		tg, err := notify.NewTelegramNotifier(cfg.TelegramToken, cfg.IsDev(), logger.Component(baseLog, "notify"))
		if err != nil {
			baseLog.Error().Err(err).Msg("telegram notifier disabled")
		} else {
			notifier = tg
		}
	}

	// --- Настройка роутера и Middleware ---
	router := chi.NewRouter()

	// Global middlewares go before api.SetupRoutes.
	router.Use(middleware.RequestID)
	router.Use(api.RequestLogger(logger.Component(baseLog, "http")))
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", constants.AuthHeader},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	handlers := api.SetupRoutes(router, api.ApiDependencies{
		Config:   cfg,
		Store:    store,
		Notifier: notifier,
		Metrics:  metrics.New(),
		Log:      logger.Component(baseLog, "api"),
	})

	router.Get("/favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		baseLog.Info().Str("addr", srv.Addr).Str("upload_dir", cfg.UploadDir).Msg("chat server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLog.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	baseLog.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLog.Error().Err(err).Msg("graceful shutdown failed")
	}
	handlers.Wait()
	baseLog.Info().Msg("server stopped")
}

// openStore connects to postgres when DATABASE_URL is set and falls back to
// memory otherwise. The memory store gets demo users in dev.
func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (db.Store, error) {
	if cfg.DatabaseURL != "" {
		return db.InitDB(ctx, cfg.DatabaseURL, log)
	}

	store := db.NewMemoryStore()
	if cfg.IsDev() {
		if err := seedDemo(ctx, store, cfg, log); err != nil {
			return nil, err
		}
	}
	return store, nil
}

// seedDemo creates a buyer, a seller and a chat between them and logs
// ready-made auth headers for the chatsync client.
func seedDemo(ctx context.Context, store db.Store, cfg *config.Config, log zerolog.Logger) error {
	buyer, err := store.CreateUser(ctx, models.User{Username: "demo_buyer", UserType: constants.USER_TYPE_BUYER})
	if err != nil {
		return err
	}
	seller, err := store.CreateUser(ctx, models.User{Username: "demo_seller", UserType: constants.USER_TYPE_SELLER})
	if err != nil {
		return err
	}
	chat, _, err := store.GetOrCreateChat(ctx, 1, buyer.ID, seller.ID)
	if err != nil {
		return err
	}

	now := time.Now()
	log.Info().
		Int64("chat_id", chat.ID).
		Str("buyer_auth", utils.SignAuth(cfg.AuthSecret, buyer.ID, now)).
		Str("seller_auth", utils.SignAuth(cfg.AuthSecret, seller.ID, now)).
		Msg("demo chat seeded")
	return nil
}
