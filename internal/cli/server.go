package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"quizroom-service/internal/config"
	"quizroom-service/internal/domain"
	"quizroom-service/internal/game"
	"quizroom-service/internal/infra/memory"
	pgloader "quizroom-service/internal/infra/postgres"
	infraredis "quizroom-service/internal/infra/redis"
	"quizroom-service/internal/metrics"
	transport "quizroom-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the coordination server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	log := logger.Sugar()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "5003"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
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
		defer pool.Close()
	}

	var loader memory.BankLoader = memory.NewStaticBankLoader(sampleBanks())
	if pool != nil {
		loader = pgloader.NewBankLoader(pool)
	}

	bankID := cfg.Bank.ID
	if bankID == "" {
		bankID = "default"
	}
	bankTTL := config.TTLDuration(cfg.Bank.TTL, 10*time.Minute)
	var banks game.QuestionSource
	if redisClient != nil {
		banks = infraredis.NewQuestionRepository(redisClient, loader, bankTTL)
	} else {
		banks = memory.NewQuestionRepository(loader, bankTTL)
	}

	var rooms game.RoomRepository
	if redisClient != nil {
		rooms = infraredis.NewRoomStore(redisClient, redisTTL)
	} else {
		rooms = memory.NewRoomStore()
	}

	m := metrics.New("quizroom")
	advanceDelay := config.TTLDuration(cfg.Game.AdvanceDelay, 3*time.Second)
	service := game.NewService(rooms, banks, bankID, log,
		game.WithAdvanceDelay(advanceDelay),
		game.WithRoomGauge(m),
	)
	gateway := transport.NewGateway(service, log, m)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/ws", gateway.ServeWS)
	mux.Handle("/metrics", m.Handler())

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Infof("starting quizroom service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server...")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleBanks provides the built-in question bank used when Postgres is not
// configured.
func sampleBanks() map[string][]domain.Question {
	return map[string][]domain.Question{
		"default": {
			{
				ID:               "1",
				Prompt:           "What is 2 + 2?",
				Options:          []string{"3", "4", "5", "6"},
				CorrectIndex:     1,
				TimeLimitSeconds: 20,
			},
			{
				ID:               "2",
				Prompt:           "What is the capital of France?",
				Options:          []string{"London", "Paris", "Berlin", "Madrid"},
				CorrectIndex:     1,
				TimeLimitSeconds: 20,
			},
			{
				ID:               "3",
				Prompt:           "Which planet is closest to the Sun?",
				Options:          []string{"Venus", "Mercury", "Mars", "Earth"},
				CorrectIndex:     1,
				TimeLimitSeconds: 20,
			},
			{
				ID:               "4",
				Prompt:           "What is the largest mammal?",
				Options:          []string{"African Elephant", "Blue Whale", "Giraffe", "Hippopotamus"},
				CorrectIndex:     1,
				TimeLimitSeconds: 20,
			},
			{
				ID:               "5",
				Prompt:           "Who painted the Mona Lisa?",
				Options:          []string{"Van Gogh", "Leonardo da Vinci", "Picasso", "Michelangelo"},
				CorrectIndex:     1,
				TimeLimitSeconds: 20,
			},
		},
	}
}
