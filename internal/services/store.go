package services

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gideonjohnson/PrepCoach-sub004/internal/database"
	"github.com/gideonjohnson/PrepCoach-sub004/internal/models"
	"github.com/gideonjohnson/PrepCoach-sub004/internal/repository"
)

type UserStore interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	UpdateSubscription(ctx context.Context, userID int64, input repository.SubscriptionUpdate) (*models.User, error)
	UpdateSubscriptionBySubscriptionID(ctx context.Context, subscriptionID string, tier *string, status string) (bool, error)
}

type InterviewerStore interface {
	GetByUserID(ctx context.Context, userID int64) (*models.Interviewer, error)
	Upsert(ctx context.Context, userID int64, input repository.UpsertInterviewerInput) (*models.Interviewer, error)
	UpdateVerification(ctx context.Context, userID int64, status string, active bool) (*models.Interviewer, error)
	List(ctx context.Context, filter repository.InterviewerListFilter) ([]models.Interviewer, int, error)
}

type SessionStore interface {
	Create(ctx context.Context, input repository.CreateSessionInput) (*models.ExpertSession, error)
	GetByID(ctx context.Context, sessionID int64) (*models.ExpertSession, error)
	GetByIDForUpdate(ctx context.Context, sessionID int64) (*models.ExpertSession, error)
	List(ctx context.Context, filter repository.SessionListFilter) ([]models.ExpertSession, error)
	LockInterviewerSchedule(ctx context.Context, interviewerID int64) error
	HasConflict(ctx context.Context, q repository.ConflictQuery) (bool, error)
	MarkScheduled(ctx context.Context, input repository.ScheduleUpdate) (*models.ExpertSession, error)
	UpdateStatusIfCurrent(ctx context.Context, sessionID int64, currentStatus string, nextStatus string) (*models.ExpertSession, error)
	Close(ctx context.Context, input repository.CloseUpdate) (*models.ExpertSession, error)
	MarkRefundedByPaymentIntent(ctx context.Context, paymentIntentID string, refundID *string) (bool, error)
	ListPayoutEligibleForUpdate(ctx context.Context, interviewerID int64, now time.Time) ([]models.ExpertSession, error)
	AssignPayout(ctx context.Context, sessionIDs []int64, payoutID int64) error
	ReleasePayout(ctx context.Context, payoutID int64) error
	MarkTransferred(ctx context.Context, payoutID int64) (int64, error)
}

type PackageStore interface {
	Create(ctx context.Context, input repository.CreatePackageInput) (*models.CoachingPackage, error)
	ExpireStale(ctx context.Context, userID int64, now time.Time) (int64, error)
	ListByUser(ctx context.Context, userID int64) ([]models.CoachingPackage, error)
	GetByIDForUpdate(ctx context.Context, packageID int64) (*models.CoachingPackage, error)
	Consume(ctx context.Context, packageID int64) (*models.CoachingPackage, error)
	Restore(ctx context.Context, packageID int64, now time.Time) (*models.CoachingPackage, error)
	Activate(ctx context.Context, packageID int64, checkoutSessionID string, now time.Time) (*models.CoachingPackage, error)
}

type CompanyStore interface {
	GetByID(ctx context.Context, companyID int64) (*models.RecruiterCompany, error)
	GetForMember(ctx context.Context, userID int64) (*models.RecruiterCompany, error)
	DebitCredits(ctx context.Context, companyID int64, amount int64) (*models.RecruiterCompany, error)
	CreditCredits(ctx context.Context, companyID int64, amount int64) (*models.RecruiterCompany, error)
	InsertLedgerEntry(ctx context.Context, input repository.LedgerEntryInput) (bool, error)
	SetLedgerBalance(ctx context.Context, reference string, balanceAfter int64) error
	ListLedger(ctx context.Context, companyID int64, limit int) ([]models.CreditLedgerEntry, error)
}

type InterviewRequestStore interface {
	Create(ctx context.Context, input repository.CreateInterviewRequestInput) (*models.InterviewRequest, error)
	ListByCompany(ctx context.Context, companyID int64) ([]models.InterviewRequest, error)
	ListByCandidate(ctx context.Context, candidateID int64) ([]models.InterviewRequest, error)
	GetByID(ctx context.Context, requestID int64) (*models.InterviewRequest, error)
	Respond(ctx context.Context, requestID int64, candidateID int64, status string) (*models.InterviewRequest, error)
}

type PayoutStore interface {
	Create(ctx context.Context, input repository.CreatePayoutInput) (*models.InterviewerPayout, error)
	GetByID(ctx context.Context, payoutID int64) (*models.InterviewerPayout, error)
	ListByInterviewer(ctx context.Context, interviewerID int64) ([]models.InterviewerPayout, error)
	MarkCompleted(ctx context.Context, payoutID int64, transferID string) (*models.InterviewerPayout, error)
	MarkFailed(ctx context.Context, payoutID int64, reason string) (*models.InterviewerPayout, error)
}

type WebhookEventStore interface {
	MarkProcessed(ctx context.Context, eventID string, eventType string) (bool, error)
}

// Queries groups the repositories bound to one connection or transaction.
type Queries struct {
	Users        UserStore
	Interviewers InterviewerStore
	Sessions     SessionStore
	Packages     PackageStore
	Companies    CompanyStore
	Requests     InterviewRequestStore
	Payouts      PayoutStore
	Webhooks     WebhookEventStore
}

// Store hands out repositories outside a transaction and runs callbacks inside one.
// InTx commits when fn returns nil and rolls back otherwise.
type Store interface {
	Queries() Queries
	InTx(ctx context.Context, opts pgx.TxOptions, fn func(q Queries) error) error
}

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Queries() Queries {
	return newQueries(s.pool)
}

func (s *PostgresStore) InTx(ctx context.Context, opts pgx.TxOptions, fn func(q Queries) error) error {
	return database.WithTx(ctx, s.pool, opts, func(tx pgx.Tx) error {
		return fn(newQueries(tx))
	})
}

func newQueries(db repository.DBTX) Queries {
	return Queries{
		Users:        repository.NewUserRepository(db),
		Interviewers: repository.NewInterviewerRepository(db),
		Sessions:     repository.NewSessionRepository(db),
		Packages:     repository.NewPackageRepository(db),
		Companies:    repository.NewCompanyRepository(db),
		Requests:     repository.NewInterviewRequestRepository(db),
		Payouts:      repository.NewPayoutRepository(db),
		Webhooks:     repository.NewWebhookEventRepository(db),
	}
}
