package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"quizroom-service/internal/app"
	"quizroom-service/internal/auth"
	"quizroom-service/internal/config"
	"quizroom-service/internal/infra/broker"
	"quizroom-service/internal/infra/memory"
	"quizroom-service/internal/infra/postgres"
	redisstore "quizroom-service/internal/infra/redis"
	transport "quizroom-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz room server",
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
	configureLogging(cfg.Log.Level, cfg.Log.Pretty)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	sinks := app.MultiSink{app.LogSink{}}

	var loader memory.BankLoader = memory.NewStaticBankLoader(memory.SampleBanks())
	if cfg.Postgres.URL != "" {
		db := openBunDB(cfg.Postgres.URL)
		defer db.Close()
		if err := runMigrations(ctx, db); err != nil {
			return err
		}
		sinks = append(sinks, postgres.NewResultStore(db))

		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pool.Close()
		loader = postgres.NewBankLoader(pool)
	} else {
		log.Info().Msg("postgres not configured, serving sample questions")
	}

	if cfg.NATS.URL != "" {
		jsCfg := broker.DefaultJetStreamConfig()
		jsCfg.URL = cfg.NATS.URL
		if cfg.NATS.Stream != "" {
			jsCfg.StreamName = cfg.NATS.Stream
		}
		if cfg.NATS.SubjectPrefix != "" {
			jsCfg.SubjectPrefix = cfg.NATS.SubjectPrefix
		}
		publisher, err := broker.NewResultPublisher(ctx, jsCfg)
		if err != nil {
			return err
		}
		defer publisher.Close()
		sinks = append(sinks, publisher)
	}

	bankTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var bank app.QuestionBank = memory.NewBankRepository(loader, bankTTL)
	var rooms app.RoomRepository = memory.NewRoomStore()
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		bank = redisstore.NewBankRepository(redisClient, loader, bankTTL)
		rooms = redisstore.NewRoomStore(redisClient, config.TTLDuration(cfg.Redis.TTL, 2*time.Hour), instanceID())
	}

	var tickets transport.TicketParser
	if cfg.Auth.TicketSecret != "" {
		svc, err := auth.NewTicketService(cfg.Auth.TicketSecret, config.TTLDuration(cfg.Auth.TicketTTL, time.Minute))
		if err != nil {
			return err
		}
		tickets = svc
	}

	coordinator := app.NewCoordinator(rooms, app.NewBankQuizSource(bank), sinks, clockwork.NewRealClock(), cfg.RoomSettings())

	wsOpts := transport.Options{
		PingInterval:   config.TTLDuration(cfg.WebSocket.PingInterval, 0),
		ReadTimeout:    config.TTLDuration(cfg.WebSocket.ReadTimeout, 0),
		WriteTimeout:   config.TTLDuration(cfg.WebSocket.WriteTimeout, 0),
		SendBuffer:     cfg.WebSocket.SendBuffer,
		MaxMessageSize: cfg.WebSocket.MaxMessageSize,
	}
	wsHandler := transport.NewWSHandler(coordinator, tickets, cfg.Auth.Required, wsOpts, cfg.Server.AllowOrigins)
	handler := transport.NewRouter(wsHandler, transport.NewRoomsHandler(coordinator), cfg.Server.AllowOrigins)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      handler,
		ReadTimeout:  config.TTLDuration(cfg.Server.ReadTimeout, 15*time.Second),
		WriteTimeout: config.TTLDuration(cfg.Server.WriteTimeout, 15*time.Second),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Msg("starting quiz room service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return coordinator.RunSweeper(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		coordinator.Shutdown(shutdownCtx)
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func instanceID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "quizroom"
	}
	return host + "-" + uuid.NewString()[:8]
}
