package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/SweetVinegar/021up-game/internal/app"
	"github.com/SweetVinegar/021up-game/internal/config"
	"github.com/SweetVinegar/021up-game/internal/infra/memory"
	pgsink "github.com/SweetVinegar/021up-game/internal/infra/postgres"
	redisinfra "github.com/SweetVinegar/021up-game/internal/infra/redis"
	transport "github.com/SweetVinegar/021up-game/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the trivia game server",
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
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 24*time.Hour)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	// Custody: in-memory demo ledger behind a balance cache. A
	// chain-backed ledger plugs in here without touching the core.
	faucet := cfg.Custody.FaucetBalance
	if faucet == 0 {
		faucet = 5000
	}
	balanceTTL := config.TTLDuration(cfg.Custody.BalanceTTL, 30*time.Second)
	var custody app.CustodyLedger = memory.NewCustody(faucet)
	custody = memory.NewCachedCustody(custody, balanceTTL)

	var rooms app.RoomRepository
	if redisClient != nil {
		rooms = redisinfra.NewRoomStore(redisClient, redisTTL)
	} else {
		rooms = memory.NewRoomStore()
	}

	var receipts app.ReceiptStore
	switch {
	case pool != nil:
		receipts = pgsink.NewReceiptStore(pool)
	case redisClient != nil:
		receipts = redisinfra.NewReceiptStore(redisClient, redisTTL)
	default:
		receipts = memory.NewReceiptStore()
	}

	var sink app.EventSink
	if pool != nil {
		sink = pgsink.NewEventSink(pool)
	} else {
		sink = memory.NewEventSink()
	}

	service := app.NewGameService(rooms, custody, receipts, sink)
	wsHandler := transport.NewWSHandler(service)
	apiHandler := transport.NewAPIHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	apiHandler.Register(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting trivia arena on :%s", finalPort)
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
