package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/gideonjohnson/PrepCoach-sub004/internal/metrics"
	"github.com/gideonjohnson/PrepCoach-sub004/internal/models"
)

var (
	testDBOnce sync.Once
	testDBPool *pgxpool.Pool
	testDBErr  error
)

func TestSessionServiceConcurrentBookingsHaveOneWinner(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	service := NewSessionService(NewPostgresStore(pool), &stubGateway{}, nil, metrics.New(), zerolog.Nop())

	interviewerID := createTestInterviewer(t, ctx, pool, 12000)
	candidates := make([]int64, 5)
	for i := range candidates {
		candidates[i] = createTestUser(t, ctx, pool, models.RoleCandidate)
	}
	t.Cleanup(func() { cleanupTestUsers(t, ctx, pool, append(candidates, interviewerID)...) })

	scheduledAt := time.Now().UTC().Add(30 * 24 * time.Hour).Truncate(time.Hour)
	errs := make([]error, len(candidates))
	var wg sync.WaitGroup
	for i, candidateID := range candidates {
		wg.Add(1)
		go func(i int, candidateID int64) {
			defer wg.Done()
			_, errs[i] = service.Book(ctx, candidateID, BookSessionInput{
				InterviewerID:   interviewerID,
				SessionType:     models.SessionTypeCoding,
				ScheduledAt:     scheduledAt.Add(time.Duration(i) * 10 * time.Minute),
				DurationMinutes: 60,
			})
		}(i, candidateID)
	}
	wg.Wait()

	booked := 0
	for _, err := range errs {
		switch {
		case err == nil:
			booked++
		case errors.Is(err, ErrSlotConflict):
		default:
			t.Fatalf("unexpected booking error: %v", err)
		}
	}
	if booked != 1 {
		t.Fatalf("expected exactly one booking to win, got %d", booked)
	}
}

func TestPackageServiceConsumesAgainstPostgres(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	store := NewPostgresStore(pool)
	sessions := NewSessionService(store, &stubGateway{}, nil, metrics.New(), zerolog.Nop())
	packages := NewPackageService(store, nil, metrics.New(), zerolog.Nop())

	interviewerID := createTestInterviewer(t, ctx, pool, 10000)
	candidateID := createTestUser(t, ctx, pool, models.RoleCandidate)
	t.Cleanup(func() { cleanupTestUsers(t, ctx, pool, candidateID, interviewerID) })

	pkg, err := packages.CreatePackage(ctx, candidateID, CreatePackageInput{Name: "Loop prep", TotalSessions: 2, PriceCents: 18000})
	if err != nil {
		t.Fatalf("CreatePackage: %v", err)
	}
	if _, err := pool.Exec(ctx, `
		UPDATE coaching_packages
		SET status = 'active', expires_at = NOW() + INTERVAL '90 days'
		WHERE id = $1
	`, pkg.ID); err != nil {
		t.Fatalf("activate package: %v", err)
	}

	session, err := sessions.Book(ctx, candidateID, BookSessionInput{
		InterviewerID:   interviewerID,
		SessionType:     models.SessionTypeBehavioral,
		ScheduledAt:     time.Now().UTC().Add(14 * 24 * time.Hour).Truncate(time.Hour),
		DurationMinutes: 45,
	})
	if err != nil {
		t.Fatalf("Book: %v", err)
	}

	result, err := packages.ConsumePackage(ctx, candidateID, pkg.ID, session.ID)
	if err != nil {
		t.Fatalf("ConsumePackage: %v", err)
	}
	if result.Session.Status != models.SessionScheduled || result.Package.RemainingSessions != 1 {
		t.Fatalf("unexpected consumption result: %+v / %+v", result.Session, result.Package)
	}

	if _, err := packages.ConsumePackage(ctx, candidateID, pkg.ID, session.ID); !errors.Is(err, ErrInvalidSessionState) {
		t.Fatalf("expected second consumption of the same session to fail, got %v", err)
	}
}

func integrationTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	testDBOnce.Do(func() {
		_ = godotenv.Load(".env")
		_ = godotenv.Load(filepath.Join("..", "..", ".env"))

		dbURL := os.Getenv("DB_URL")
		if dbURL == "" {
			testDBErr = fmt.Errorf("DB_URL is not set")
			return
		}

		cfg, err := pgxpool.ParseConfig(dbURL)
		if err != nil {
			testDBErr = err
			return
		}

		testDBPool, testDBErr = pgxpool.NewWithConfig(context.Background(), cfg)
		if testDBErr != nil {
			return
		}
		testDBErr = testDBPool.Ping(context.Background())
	})

	if testDBErr != nil {
		t.Skipf("skipping integration test: %v", testDBErr)
	}
	return testDBPool
}

func createTestUser(t *testing.T, ctx context.Context, pool *pgxpool.Pool, role string) int64 {
	t.Helper()

	var id int64
	err := pool.QueryRow(ctx, `
		INSERT INTO users (email, role)
		VALUES ($1, $2)
		RETURNING id
	`, fmt.Sprintf("session-test-%s-%d@example.com", role, time.Now().UnixNano()), role).Scan(&id)
	if err != nil {
		t.Fatalf("create %s: %v", role, err)
	}
	return id
}

func createTestInterviewer(t *testing.T, ctx context.Context, pool *pgxpool.Pool, hourlyRateCents int64) int64 {
	t.Helper()

	id := createTestUser(t, ctx, pool, models.RoleInterviewer)
	if _, err := pool.Exec(ctx, `
		INSERT INTO interviewers (user_id, display_name, hourly_rate_cents, verification_status, is_active)
		VALUES ($1, 'Test Interviewer', $2, 'verified', TRUE)
	`, id, hourlyRateCents); err != nil {
		t.Fatalf("create interviewer profile: %v", err)
	}
	return id
}

func cleanupTestUsers(t *testing.T, ctx context.Context, pool *pgxpool.Pool, userIDs ...int64) {
	t.Helper()

	if len(userIDs) == 0 {
		return
	}

	statements := []struct {
		name  string
		query string
	}{
		{"sessions", "DELETE FROM expert_sessions WHERE candidate_id = ANY($1) OR interviewer_id = ANY($1)"},
		{"payouts", "DELETE FROM interviewer_payouts WHERE interviewer_id = ANY($1)"},
		{"packages", "DELETE FROM coaching_packages WHERE user_id = ANY($1)"},
		{"interviewers", "DELETE FROM interviewers WHERE user_id = ANY($1)"},
		{"users", "DELETE FROM users WHERE id = ANY($1)"},
	}
	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt.query, userIDs); err != nil {
			t.Fatalf("cleanup %s: %v", stmt.name, err)
		}
	}
}
