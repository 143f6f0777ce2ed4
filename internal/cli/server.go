package cli

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"quiz-room-service/internal/app"
	"quiz-room-service/internal/config"
	"quiz-room-service/internal/domain"
	"quiz-room-service/internal/infra/api"
	"quiz-room-service/internal/infra/memory"
	pgloader "quiz-room-service/internal/infra/postgres"
	redisstore "quiz-room-service/internal/infra/redis"
	"quiz-room-service/internal/transport/ws"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the trivia room server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
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
		finalPort = "4000"
	}

	var store app.RoomStore
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		store = redisstore.NewRoomStore(client)
	} else {
		log.Printf("no redis configured, using in-memory room store")
		store = memory.NewRoomStore()
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var source app.QuestionSource
	switch {
	case cfg.Questions.APIURL != "":
		source = api.NewQuestionClient(cfg.Questions.APIURL)
	case pool != nil:
		source = pgloader.NewQuestionLoader(pool)
	default:
		log.Printf("no question source configured, using built-in sample questions")
		source = memory.NewStaticQuestionSource(sampleQuestions())
	}

	// One fetch at boot; a failure leaves the bank empty and the health
	// endpoint reports it. No automatic retry.
	bank := app.NewQuestionBank()
	if err := bank.Load(ctx, source); err != nil {
		log.Printf("question fetch failed, bank is empty: %v", err)
	}

	hub := ws.NewHub()
	timers := app.NewTimerTable()
	settings := app.SettingsFromConfig(cfg.Game)
	rooms := app.NewRoomService(store, hub, timers, settings.MaxMembers)
	games := app.NewGameService(store, hub, bank, timers, settings)
	handler := ws.NewHandler(hub, rooms, games)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		phrases, err := store.RoomPhrases(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"questionsReady": bank.Ready(),
			"questionCount":  bank.Len(),
			"activeRooms":    len(phrases),
		})
	})
	mux.HandleFunc("/ws", handler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz room service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuestions keeps the server usable without a question API or
// database; swap in a real source via config for production.
func sampleQuestions() []domain.Question {
	return []domain.Question{
		{
			ID:            1,
			Text:          "Which planet is closest to the sun?",
			Options:       []string{"Mercury", "Venus", "Earth", "Mars"},
			CorrectAnswer: 0,
			Level:         "easy",
			Explanation:   "Mercury orbits at roughly 58 million km from the sun.",
		},
		{
			ID:            2,
			Text:          "What is the chemical symbol for gold?",
			Options:       []string{"Gd", "Go", "Au", "Ag"},
			CorrectAnswer: 2,
			Level:         "easy",
			Explanation:   "Au comes from the Latin aurum.",
		},
		{
			ID:            3,
			Text:          "Which ocean is the deepest?",
			Options:       []string{"Atlantic", "Indian", "Arctic", "Pacific"},
			CorrectAnswer: 3,
			Level:         "medium",
			Explanation:   "The Mariana Trench in the Pacific reaches about 11 km.",
		},
	}
}
