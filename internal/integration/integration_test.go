package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"github.com/SweetVinegar/021up-game/internal/app"
	"github.com/SweetVinegar/021up-game/internal/domain"
	"github.com/SweetVinegar/021up-game/internal/infra/memory"
	pgsink "github.com/SweetVinegar/021up-game/internal/infra/postgres"
	pgmigrations "github.com/SweetVinegar/021up-game/internal/infra/postgres/migrations"
	redisinfra "github.com/SweetVinegar/021up-game/internal/infra/redis"
)

func TestGameLifecycleEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	runMigrations(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	custody := memory.NewCustody(1000)
	service := app.NewGameService(
		redisinfra.NewRoomStore(redisClient, 5*time.Minute),
		custody,
		pgsink.NewReceiptStore(pool),
		pgsink.NewEventSink(pool),
	)

	spec := app.CreateRoomSpec{
		Name:              "Integration quiz",
		Organizer:         "0xorg",
		TokenSymbol:       "QUIZ",
		RewardPerQuestion: 100,
		Questions: []app.QuestionSpec{
			{Text: "Pick b", Options: []string{"a", "b", "c", "d"}, CorrectIndex: 1, TimeLimitSec: 30},
			{Text: "Pick b again", Options: []string{"a", "b", "c", "d"}, CorrectIndex: 1, TimeLimitSec: 30},
		},
	}
	roomID, err := service.CreateRoom(ctx, spec)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if !redisExists(t, ctx, redisClient, "room:live:"+roomID) {
		t.Fatalf("expected room liveness key in redis")
	}

	if _, err := service.JoinRoom(ctx, roomID, "0xalice", "Alice"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := service.StartRoom(ctx, roomID, "0xorg"); err != nil {
		t.Fatalf("start: %v", err)
	}
	for q := 0; q < 2; q++ {
		if _, _, err := service.SubmitAnswer(ctx, roomID, "0xalice", domain.AnswerSubmission{
			QuestionIndex:  q,
			SelectedOption: 1,
			TimeToAnswerMs: 250,
		}); err != nil {
			t.Fatalf("submit q%d: %v", q, err)
		}
	}

	snap, err := service.GetRoom(roomID)
	if err != nil {
		t.Fatalf("get room: %v", err)
	}
	if snap.Status != domain.StatusCompleted {
		t.Fatalf("expected completed, got %s", snap.Status)
	}
	if balance, _ := custody.BalanceOf(ctx, "0xalice"); balance != 1200 {
		t.Fatalf("expected payout of 200, balance %d", balance)
	}

	// The durable mirror caught up with the in-memory transitions.
	var status string
	if err := pool.QueryRow(ctx, `SELECT status FROM rooms WHERE id=$1`, roomID).Scan(&status); err != nil {
		t.Fatalf("query room: %v", err)
	}
	if status != string(domain.StatusCompleted) {
		t.Fatalf("expected persisted status completed, got %s", status)
	}

	var answers int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM answers WHERE room_id=$1`, roomID).Scan(&answers); err != nil {
		t.Fatalf("query answers: %v", err)
	}
	if answers != 2 {
		t.Fatalf("expected 2 persisted answers, got %d", answers)
	}

	var confirmed int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM payout_receipts WHERE room_id=$1 AND kind='reward' AND status='confirmed'`, roomID).Scan(&confirmed); err != nil {
		t.Fatalf("query receipts: %v", err)
	}
	if confirmed != 1 {
		t.Fatalf("expected 1 confirmed reward receipt, got %d", confirmed)
	}
}

func runMigrations(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "trivia", "POSTGRES_PASSWORD": "triviapass", "POSTGRES_DB": "triviadb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://trivia:triviapass@%s:%s/triviadb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func redisExists(t *testing.T, ctx context.Context, client *goredis.Client, key string) bool {
	t.Helper()
	n, err := client.Exists(ctx, key).Result()
	if err != nil {
		t.Fatalf("redis exists: %v", err)
	}
	return n > 0
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
