package e2e

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glizzus/radio-relay/internal/audio"
	"github.com/glizzus/radio-relay/internal/datalayer"
	"github.com/glizzus/radio-relay/internal/gateway/gatewaytest"
	"github.com/glizzus/radio-relay/internal/generator"
	"github.com/glizzus/radio-relay/internal/journal"
	"github.com/glizzus/radio-relay/internal/session"
	"github.com/glizzus/radio-relay/internal/supervisor"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

type RandomSnowFlakeGenerator struct {
	counter uint64
}

func (g *RandomSnowFlakeGenerator) Next() (string, error) {
	const min = 1e17
	atomic.CompareAndSwapUint64(&g.counter, 0, min)
	id := atomic.AddUint64(&g.counter, 1)
	return fmt.Sprintf("%d", id), nil
}

var _ generator.Generator[string] = (*RandomSnowFlakeGenerator)(nil)

var (
	once              sync.Once
	postgresContainer *postgres.PostgresContainer
	connStr           string
	startErr          error
	wg                sync.WaitGroup
)

// UsePostgres signals that the test is using Postgres as its database.
// This will either provision or reuse a Postgres container for the test.
// Do not expect a clean state in the database; it is shared across tests
// to simulate real-world usage.
func UsePostgres(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	once.Do(func() {
		ctx := context.Background()
		postgresContainer, startErr = postgres.Run(
			ctx,
			"postgres",
			postgres.WithDatabase("radiorelay"),
			postgres.WithUsername("user"),
			postgres.WithPassword("password"),
			postgres.BasicWaitStrategies(),
		)
		if startErr != nil {
			return
		}
		connStr, startErr = postgresContainer.ConnectionString(ctx)
		if startErr != nil {
			return
		}

		var pool *pgxpool.Pool
		pool, startErr = pgxpool.New(ctx, connStr)
		if startErr != nil {
			return
		}
		defer pool.Close()

		startErr = datalayer.MigratePostgres(pool)
	})

	if startErr != nil {
		t.Fatalf("failed to start postgres container: %v", startErr)
	}
	wg.Add(1)
	t.Cleanup(wg.Done)

	return connStr
}

// GetPostgresJournal creates a journal backed by the database at connStr.
// It performs no modifications or migrations on the database schema.
func GetPostgresJournal(t *testing.T, connStr string) *journal.Postgres {
	t.Helper()
	pool, err := pgxpool.New(t.Context(), connStr)
	if err != nil {
		t.Fatalf("failed to create postgres pool: %v", err)
	}

	t.Cleanup(pool.Close)
	return journal.NewPostgres(pool)
}

func TerminatePostgresForE2E() {
	wg.Wait()
	if postgresContainer != nil {
		err := postgresContainer.Terminate(context.Background())
		if err != nil {
			fmt.Printf("failed to terminate postgres container: %v", err)
		}
	}
}

var (
	redisOnce      sync.Once
	redisContainer *tcredis.RedisContainer
	redisURL       string
	redisStartErr  error
	redisWG        sync.WaitGroup
)

// UseRedis is UsePostgres for Redis. Streams are shared across tests, so
// callers should pick their own stream name.
func UseRedis(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	redisOnce.Do(func() {
		ctx := context.Background()
		redisContainer, redisStartErr = tcredis.Run(ctx, "redis:7")
		if redisStartErr != nil {
			return
		}
		redisURL, redisStartErr = redisContainer.ConnectionString(ctx)
	})

	if redisStartErr != nil {
		t.Fatalf("failed to start redis container: %v", redisStartErr)
	}
	redisWG.Add(1)
	t.Cleanup(redisWG.Done)

	return redisURL
}

func GetRedisJournal(t *testing.T, url, stream string) *journal.Redis {
	t.Helper()
	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("failed to parse redis url: %v", err)
	}
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	return journal.NewRedis(client, stream, 1000)
}

func TerminateRedisForE2E() {
	redisWG.Wait()
	if redisContainer != nil {
		err := redisContainer.Terminate(context.Background())
		if err != nil {
			fmt.Printf("failed to terminate redis container: %v", err)
		}
	}
}

// Streams stands in for ffmpeg. Every opened source is a pipe the test can
// write frames to or close.
type Streams struct {
	mu      sync.Mutex
	writers []*io.PipeWriter
}

func (s *Streams) Open(ctx context.Context, url string) (io.ReadCloser, error) {
	pr, pw := io.Pipe()
	s.mu.Lock()
	s.writers = append(s.writers, pw)
	s.mu.Unlock()
	return pr, nil
}

func (s *Streams) Opened() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.writers)
}

// End closes the i-th source as if the radio station hung up.
func (s *Streams) End(i int) {
	s.mu.Lock()
	w := s.writers[i]
	s.mu.Unlock()
	_ = w.Close()
}

// Radio is a supervisor wired to an in-memory gateway and piped audio.
type Radio struct {
	*supervisor.Supervisor
	Gateway *gatewaytest.Gateway
	Streams *Streams
	Audio   *audio.Manager
}

// NewRadio builds a Radio that records to recorder and never waits between
// reconnect attempts.
func NewRadio(t *testing.T, recorder journal.Recorder) *Radio {
	t.Helper()
	gw := gatewaytest.New()
	streams := &Streams{}
	player := audio.NewManager(streams.Open, time.Second, nil)

	sup := supervisor.New(
		supervisor.Config{
			StreamURL:      "http://radio.test/stream.mp3",
			MaxAttempts:    5,
			BackoffBase:    2 * time.Second,
			StalePause:     time.Second,
			JournalTimeout: 5 * time.Second,
		},
		session.NewStore(),
		gw,
		player,
		supervisor.WithJournal(recorder),
		supervisor.WithSleep(func(ctx context.Context, d time.Duration) error { return ctx.Err() }),
	)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := sup.Shutdown(ctx); err != nil {
			t.Errorf("failed to shut down supervisor: %v", err)
		}
		player.Close()
	})

	return &Radio{Supervisor: sup, Gateway: gw, Streams: streams, Audio: player}
}
