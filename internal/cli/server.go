package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"quiz-lobby-service/internal/app"
	"quiz-lobby-service/internal/config"
	"quiz-lobby-service/internal/infra/httpapi"
	"quiz-lobby-service/internal/infra/memory"
	pgresults "quiz-lobby-service/internal/infra/postgres"
	redisinfra "quiz-lobby-service/internal/infra/redis"
	"quiz-lobby-service/internal/notify"
	"quiz-lobby-service/internal/presence"
	transport "quiz-lobby-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the lobby server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the lobby server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *goredis.Client
	if cfg.Redis.Addr != "" {
		redisClient = goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	clock := clockwork.NewRealClock()

	// Presence store: upstream HTTP when configured, in-process otherwise.
	var presenceAPI presence.API = memory.NewPresenceStore(clock)
	if cfg.Presence.BaseURL != "" {
		token := cfg.Presence.Token
		presenceAPI = httpapi.NewPresenceClient(cfg.Presence.BaseURL, func() string { return token })
	}

	// Results pipeline: Postgres or upstream API behind a TTL cache.
	resultsTTL := config.TTLDuration(cfg.Results.TTL, time.Minute)
	var loader memory.ResultsLoader = memory.NewStaticResultsLoader(nil)
	if pool != nil {
		loader = pgresults.NewResultsLoader(pool)
	} else if cfg.Results.BaseURL != "" {
		token := cfg.Presence.Token
		loader = httpapi.NewResultsClient(cfg.Results.BaseURL, func() string { return token })
	}
	var results app.ResultsRepository
	if redisClient != nil {
		results = redisinfra.NewResultsCache(redisClient, loader, resultsTTL)
	} else {
		results = memory.NewResultsCache(loader, resultsTTL)
	}

	var lobbies app.LobbyRepository
	if redisClient != nil {
		lobbies = redisinfra.NewLobbyStore(redisClient, redisTTL)
	} else {
		lobbies = memory.NewLobbyStore()
	}

	notifier := notify.LogNotifier{Logger: logger}
	service := app.NewLobbyService(lobbies, presenceAPI, results, notifier, clock, logger, cfg.PollConfig())
	wsHandler := transport.NewWSHandler(service, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	wsHandler.RegisterRoutes(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info().Str("port", finalPort).Msg("starting lobby service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info().Msg("shutting down server")
	case <-ctx.Done():
		logger.Info().Msg("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
