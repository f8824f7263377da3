package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/gideonjohnson/PrepCoach-sub004/internal/events"
	"github.com/gideonjohnson/PrepCoach-sub004/internal/models"
	"github.com/gideonjohnson/PrepCoach-sub004/internal/payments"
	"github.com/gideonjohnson/PrepCoach-sub004/internal/repository"
)

// memoryStore mimics the Postgres repositories closely enough for service tests: guarded
// updates return pgx.ErrNoRows when their guard fails and InTx rolls back on error.
type memoryStore struct {
	state    *memoryState
	failures map[string]error
	txCount  int
}

type memoryState struct {
	nextID       int64
	users        map[int64]models.User
	interviewers map[int64]models.Interviewer
	sessions     map[int64]models.ExpertSession
	packages     map[int64]models.CoachingPackage
	companies    map[int64]models.RecruiterCompany
	members      map[int64]int64
	ledger       []models.CreditLedgerEntry
	requests     map[int64]models.InterviewRequest
	payouts      map[int64]models.InterviewerPayout
	webhooks     map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		state: &memoryState{
			nextID:       100,
			users:        map[int64]models.User{},
			interviewers: map[int64]models.Interviewer{},
			sessions:     map[int64]models.ExpertSession{},
			packages:     map[int64]models.CoachingPackage{},
			companies:    map[int64]models.RecruiterCompany{},
			members:      map[int64]int64{},
			requests:     map[int64]models.InterviewRequest{},
			payouts:      map[int64]models.InterviewerPayout{},
			webhooks:     map[string]string{},
		},
		failures: map[string]error{},
	}
}

func (s *memoryState) clone() *memoryState {
	c := &memoryState{
		nextID:       s.nextID,
		users:        make(map[int64]models.User, len(s.users)),
		interviewers: make(map[int64]models.Interviewer, len(s.interviewers)),
		sessions:     make(map[int64]models.ExpertSession, len(s.sessions)),
		packages:     make(map[int64]models.CoachingPackage, len(s.packages)),
		companies:    make(map[int64]models.RecruiterCompany, len(s.companies)),
		members:      make(map[int64]int64, len(s.members)),
		ledger:       append([]models.CreditLedgerEntry(nil), s.ledger...),
		requests:     make(map[int64]models.InterviewRequest, len(s.requests)),
		payouts:      make(map[int64]models.InterviewerPayout, len(s.payouts)),
		webhooks:     make(map[string]string, len(s.webhooks)),
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.interviewers {
		c.interviewers[k] = v
	}
	for k, v := range s.sessions {
		c.sessions[k] = v
	}
	for k, v := range s.packages {
		c.packages[k] = v
	}
	for k, v := range s.companies {
		c.companies[k] = v
	}
	for k, v := range s.members {
		c.members[k] = v
	}
	for k, v := range s.requests {
		c.requests[k] = v
	}
	for k, v := range s.payouts {
		c.payouts[k] = v
	}
	for k, v := range s.webhooks {
		c.webhooks[k] = v
	}
	return c
}

func (s *memoryStore) id() int64 {
	s.state.nextID++
	return s.state.nextID
}

// failOn makes the named repository operation return err until cleared.
func (s *memoryStore) failOn(op string, err error) {
	s.failures[op] = err
}

func (s *memoryStore) fault(op string) error {
	return s.failures[op]
}

func (s *memoryStore) Queries() Queries {
	return Queries{
		Users:        memoryUsers{s},
		Interviewers: memoryInterviewers{s},
		Sessions:     memorySessions{s},
		Packages:     memoryPackages{s},
		Companies:    memoryCompanies{s},
		Requests:     memoryRequests{s},
		Payouts:      memoryPayouts{s},
		Webhooks:     memoryWebhooks{s},
	}
}

func (s *memoryStore) InTx(_ context.Context, _ pgx.TxOptions, fn func(q Queries) error) error {
	s.txCount++
	snapshot := s.state.clone()
	if err := fn(s.Queries()); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

func (s *memoryStore) addUser(user models.User) models.User {
	if user.ID == 0 {
		user.ID = s.id()
	}
	if user.SubscriptionTier == "" {
		user.SubscriptionTier = models.TierFree
	}
	s.state.users[user.ID] = user
	return user
}

func (s *memoryStore) addInterviewer(rateCents int64) models.Interviewer {
	user := s.addUser(models.User{Role: models.RoleInterviewer})
	account := "acct_" + fmt.Sprint(user.ID)
	interviewer := models.Interviewer{
		UserID:             user.ID,
		DisplayName:        "Interviewer " + fmt.Sprint(user.ID),
		HourlyRateCents:    rateCents,
		VerificationStatus: models.VerificationVerified,
		IsActive:           true,
		Skills:             []string{"go"},
		Companies:          []string{"Acme"},
		StripeAccountID:    &account,
	}
	s.state.interviewers[user.ID] = interviewer
	return interviewer
}

func (s *memoryStore) addSession(session models.ExpertSession) models.ExpertSession {
	if session.ID == 0 {
		session.ID = s.id()
	}
	if session.DurationMinutes == 0 {
		session.DurationMinutes = 60
	}
	if session.SessionType == "" {
		session.SessionType = models.SessionTypeCoding
	}
	if session.PaymentStatus == "" {
		session.PaymentStatus = models.PaymentUnpaid
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = testNow
	}
	s.state.sessions[session.ID] = session
	return session
}

func (s *memoryStore) addPackage(pkg models.CoachingPackage) models.CoachingPackage {
	if pkg.ID == 0 {
		pkg.ID = s.id()
	}
	if pkg.Status == "" {
		pkg.Status = models.PackageActive
	}
	s.state.packages[pkg.ID] = pkg
	return pkg
}

func (s *memoryStore) session(id int64) models.ExpertSession {
	return s.state.sessions[id]
}

func (s *memoryStore) pkg(id int64) models.CoachingPackage {
	return s.state.packages[id]
}

type memoryUsers struct{ s *memoryStore }

func (r memoryUsers) GetByID(_ context.Context, id int64) (*models.User, error) {
	user, ok := r.s.state.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &user, nil
}

func (r memoryUsers) UpdateSubscription(_ context.Context, userID int64, input repository.SubscriptionUpdate) (*models.User, error) {
	user, ok := r.s.state.users[userID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	status := input.Status
	user.SubscriptionTier = input.Tier
	user.SubscriptionStatus = &status
	if input.CustomerID != nil {
		user.StripeCustomerID = input.CustomerID
	}
	if input.SubscriptionID != nil {
		user.StripeSubscriptionID = input.SubscriptionID
	}
	r.s.state.users[userID] = user
	return &user, nil
}

func (r memoryUsers) UpdateSubscriptionBySubscriptionID(
	_ context.Context,
	subscriptionID string,
	tier *string,
	status string,
) (bool, error) {
	changed := false
	for id, user := range r.s.state.users {
		if user.StripeSubscriptionID == nil || *user.StripeSubscriptionID != subscriptionID {
			continue
		}
		currentStatus := ""
		if user.SubscriptionStatus != nil {
			currentStatus = *user.SubscriptionStatus
		}
		nextTier := user.SubscriptionTier
		if tier != nil {
			nextTier = *tier
		}
		if nextTier == user.SubscriptionTier && status == currentStatus {
			continue
		}
		nextStatus := status
		user.SubscriptionTier = nextTier
		user.SubscriptionStatus = &nextStatus
		r.s.state.users[id] = user
		changed = true
	}
	return changed, nil
}

type memoryInterviewers struct{ s *memoryStore }

func (r memoryInterviewers) GetByUserID(_ context.Context, userID int64) (*models.Interviewer, error) {
	interviewer, ok := r.s.state.interviewers[userID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &interviewer, nil
}

func (r memoryInterviewers) Upsert(
	_ context.Context,
	userID int64,
	input repository.UpsertInterviewerInput,
) (*models.Interviewer, error) {
	interviewer, ok := r.s.state.interviewers[userID]
	if !ok {
		interviewer = models.Interviewer{UserID: userID, VerificationStatus: models.VerificationPending}
	}
	interviewer.DisplayName = input.DisplayName
	interviewer.Headline = input.Headline
	interviewer.HourlyRateCents = input.HourlyRateCents
	interviewer.Skills = input.Skills
	interviewer.Companies = input.Companies
	if input.StripeAccountID != nil {
		interviewer.StripeAccountID = input.StripeAccountID
	}
	r.s.state.interviewers[userID] = interviewer
	return &interviewer, nil
}

func (r memoryInterviewers) UpdateVerification(
	_ context.Context,
	userID int64,
	status string,
	active bool,
) (*models.Interviewer, error) {
	interviewer, ok := r.s.state.interviewers[userID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	interviewer.VerificationStatus = status
	interviewer.IsActive = active
	r.s.state.interviewers[userID] = interviewer
	return &interviewer, nil
}

func (r memoryInterviewers) List(
	_ context.Context,
	filter repository.InterviewerListFilter,
) ([]models.Interviewer, int, error) {
	matches := make([]models.Interviewer, 0)
	for _, interviewer := range r.s.state.interviewers {
		if interviewer.VerificationStatus != models.VerificationVerified || !interviewer.IsActive {
			continue
		}
		if filter.MaxRateCents > 0 && interviewer.HourlyRateCents > filter.MaxRateCents {
			continue
		}
		if filter.Skill != "" && !containsFold(interviewer.Skills, filter.Skill) {
			continue
		}
		if filter.Company != "" && !containsFold(interviewer.Companies, filter.Company) {
			continue
		}
		matches = append(matches, interviewer)
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].HourlyRateCents != matches[j].HourlyRateCents {
			return matches[i].HourlyRateCents < matches[j].HourlyRateCents
		}
		return matches[i].UserID < matches[j].UserID
	})

	total := len(matches)
	start := min(filter.Offset, total)
	end := min(start+filter.Limit, total)
	return matches[start:end], total, nil
}

func containsFold(values []string, needle string) bool {
	for _, value := range values {
		if strings.Contains(strings.ToLower(value), strings.ToLower(needle)) {
			return true
		}
	}
	return false
}

type memorySessions struct{ s *memoryStore }

func (r memorySessions) Create(_ context.Context, input repository.CreateSessionInput) (*models.ExpertSession, error) {
	session := r.s.addSession(models.ExpertSession{
		CandidateID:      input.CandidateID,
		InterviewerID:    input.InterviewerID,
		SessionType:      input.SessionType,
		ScheduledAt:      input.ScheduledAt,
		DurationMinutes:  input.DurationMinutes,
		Status:           models.SessionPendingPayment,
		PaymentStatus:    models.PaymentUnpaid,
		PriceCents:       input.PriceCents,
		PlatformFeeCents: input.PlatformFeeCents,
		PayoutCents:      input.PayoutCents,
	})
	return &session, nil
}

func (r memorySessions) GetByID(_ context.Context, sessionID int64) (*models.ExpertSession, error) {
	session, ok := r.s.state.sessions[sessionID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &session, nil
}

func (r memorySessions) GetByIDForUpdate(ctx context.Context, sessionID int64) (*models.ExpertSession, error) {
	return r.GetByID(ctx, sessionID)
}

func (r memorySessions) List(_ context.Context, filter repository.SessionListFilter) ([]models.ExpertSession, error) {
	sessions := make([]models.ExpertSession, 0)
	for _, session := range r.s.state.sessions {
		actor := session.CandidateID
		if filter.Role == models.RoleInterviewer {
			actor = session.InterviewerID
		}
		if actor != filter.ActorID || (filter.Status != "" && session.Status != filter.Status) {
			continue
		}
		sessions = append(sessions, session)
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].ID < sessions[j].ID })
	return sessions, nil
}

func (r memorySessions) LockInterviewerSchedule(context.Context, int64) error {
	return r.s.fault("LockInterviewerSchedule")
}

func (r memorySessions) HasConflict(_ context.Context, q repository.ConflictQuery) (bool, error) {
	for _, session := range r.s.state.sessions {
		if session.InterviewerID != q.InterviewerID || session.ID == q.ExcludeSessionID {
			continue
		}
		held := session.Status == models.SessionPendingPayment && q.HeldSince != nil && session.CreatedAt.After(*q.HeldSince)
		if session.Status != models.SessionScheduled && session.Status != models.SessionInProgress && !held {
			continue
		}
		if SlotConflicts(session.ScheduledAt, session.DurationMinutes, q.ScheduledAt, q.DurationMinutes) {
			return true, nil
		}
	}
	return false, nil
}

func (r memorySessions) MarkScheduled(_ context.Context, input repository.ScheduleUpdate) (*models.ExpertSession, error) {
	if err := r.s.fault("MarkScheduled"); err != nil {
		return nil, err
	}
	session, ok := r.s.state.sessions[input.SessionID]
	if !ok || session.Status != models.SessionPendingPayment {
		return nil, pgx.ErrNoRows
	}
	session.Status = models.SessionScheduled
	session.PaymentStatus = models.PaymentPaid
	if input.CoachingPackageID != nil {
		session.CoachingPackageID = input.CoachingPackageID
	}
	if input.PaymentIntentID != nil {
		session.StripePaymentIntentID = input.PaymentIntentID
	}
	r.s.state.sessions[session.ID] = session
	return &session, nil
}

func (r memorySessions) UpdateStatusIfCurrent(
	_ context.Context,
	sessionID int64,
	currentStatus string,
	nextStatus string,
) (*models.ExpertSession, error) {
	session, ok := r.s.state.sessions[sessionID]
	if !ok || session.Status != currentStatus {
		return nil, pgx.ErrNoRows
	}
	session.Status = nextStatus
	r.s.state.sessions[sessionID] = session
	return &session, nil
}

func (r memorySessions) Close(_ context.Context, input repository.CloseUpdate) (*models.ExpertSession, error) {
	if err := r.s.fault("Close"); err != nil {
		return nil, err
	}
	session, ok := r.s.state.sessions[input.SessionID]
	if !ok || session.Status != input.FromStatus {
		return nil, pgx.ErrNoRows
	}
	session.Status = input.ToStatus
	if input.Refunded {
		session.PaymentStatus = models.PaymentRefunded
	}
	if input.RefundID != nil {
		session.StripeRefundID = input.RefundID
	}
	if input.NoShowParty != nil {
		session.NoShowParty = input.NoShowParty
	}
	if input.ReportedBy != nil {
		session.NoShowReportedBy = input.ReportedBy
	}
	if input.PaymentIntent != nil {
		session.StripePaymentIntentID = input.PaymentIntent
	}
	r.s.state.sessions[session.ID] = session
	return &session, nil
}

func (r memorySessions) MarkRefundedByPaymentIntent(_ context.Context, paymentIntentID string, refundID *string) (bool, error) {
	changed := false
	for id, session := range r.s.state.sessions {
		if session.StripePaymentIntentID == nil || *session.StripePaymentIntentID != paymentIntentID {
			continue
		}
		if session.PaymentStatus != models.PaymentPaid || session.PayoutID != nil {
			continue
		}
		session.PaymentStatus = models.PaymentRefunded
		if refundID != nil {
			session.StripeRefundID = refundID
		}
		r.s.state.sessions[id] = session
		changed = true
	}
	return changed, nil
}

func (r memorySessions) ListPayoutEligibleForUpdate(
	_ context.Context,
	interviewerID int64,
	now time.Time,
) ([]models.ExpertSession, error) {
	eligible := make([]models.ExpertSession, 0)
	for _, session := range r.s.state.sessions {
		if session.InterviewerID != interviewerID || session.PaymentStatus != models.PaymentPaid || session.PayoutID != nil {
			continue
		}
		candidateNoShow := session.Status == models.SessionNoShow &&
			session.NoShowParty != nil && *session.NoShowParty == models.PartyCandidate
		if session.Status != models.SessionCompleted && !candidateNoShow {
			continue
		}
		if session.EndsAt().After(now) {
			continue
		}
		eligible = append(eligible, session)
	}
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].ID < eligible[j].ID })
	return eligible, nil
}

func (r memorySessions) AssignPayout(_ context.Context, sessionIDs []int64, payoutID int64) error {
	for _, id := range sessionIDs {
		session, ok := r.s.state.sessions[id]
		if !ok || session.PayoutID != nil {
			return fmt.Errorf("assign payout %d: session %d unavailable", payoutID, id)
		}
		assigned := payoutID
		session.PayoutID = &assigned
		r.s.state.sessions[id] = session
	}
	return nil
}

func (r memorySessions) ReleasePayout(_ context.Context, payoutID int64) error {
	for id, session := range r.s.state.sessions {
		if session.PayoutID != nil && *session.PayoutID == payoutID && session.PaymentStatus == models.PaymentPaid {
			session.PayoutID = nil
			r.s.state.sessions[id] = session
		}
	}
	return nil
}

func (r memorySessions) MarkTransferred(_ context.Context, payoutID int64) (int64, error) {
	var count int64
	for id, session := range r.s.state.sessions {
		if session.PayoutID != nil && *session.PayoutID == payoutID && session.PaymentStatus == models.PaymentPaid {
			session.PaymentStatus = models.PaymentTransferred
			r.s.state.sessions[id] = session
			count++
		}
	}
	return count, nil
}

type memoryPackages struct{ s *memoryStore }

func (r memoryPackages) Create(_ context.Context, input repository.CreatePackageInput) (*models.CoachingPackage, error) {
	pkg := r.s.addPackage(models.CoachingPackage{
		UserID:            input.UserID,
		Name:              input.Name,
		TotalSessions:     input.TotalSessions,
		RemainingSessions: input.TotalSessions,
		PriceCents:        input.PriceCents,
		Status:            models.PackagePending,
		ValidityDays:      input.ValidityDays,
	})
	return &pkg, nil
}

func (r memoryPackages) ExpireStale(_ context.Context, userID int64, now time.Time) (int64, error) {
	var count int64
	for id, pkg := range r.s.state.packages {
		if pkg.UserID == userID && pkg.Status == models.PackageActive && pkg.ExpiredAt(now) {
			pkg.Status = models.PackageExpired
			r.s.state.packages[id] = pkg
			count++
		}
	}
	return count, nil
}

func (r memoryPackages) ListByUser(_ context.Context, userID int64) ([]models.CoachingPackage, error) {
	packages := make([]models.CoachingPackage, 0)
	for _, pkg := range r.s.state.packages {
		if pkg.UserID == userID {
			packages = append(packages, pkg)
		}
	}
	sort.Slice(packages, func(i, j int) bool { return packages[i].ID > packages[j].ID })
	return packages, nil
}

func (r memoryPackages) GetByIDForUpdate(_ context.Context, packageID int64) (*models.CoachingPackage, error) {
	pkg, ok := r.s.state.packages[packageID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &pkg, nil
}

func (r memoryPackages) Consume(_ context.Context, packageID int64) (*models.CoachingPackage, error) {
	pkg, ok := r.s.state.packages[packageID]
	if !ok || pkg.Status != models.PackageActive || pkg.RemainingSessions <= 0 {
		return nil, pgx.ErrNoRows
	}
	pkg.RemainingSessions--
	pkg.UsedSessions++
	if pkg.RemainingSessions == 0 {
		pkg.Status = models.PackageExhausted
	}
	r.s.state.packages[packageID] = pkg
	return &pkg, nil
}

func (r memoryPackages) Restore(_ context.Context, packageID int64, now time.Time) (*models.CoachingPackage, error) {
	pkg, ok := r.s.state.packages[packageID]
	if !ok || pkg.UsedSessions <= 0 {
		return nil, pgx.ErrNoRows
	}
	pkg.RemainingSessions++
	pkg.UsedSessions--
	pkg.Status = models.PackageActive
	if pkg.ExpiredAt(now) {
		pkg.Status = models.PackageExpired
	}
	r.s.state.packages[packageID] = pkg
	return &pkg, nil
}

func (r memoryPackages) Activate(
	_ context.Context,
	packageID int64,
	checkoutSessionID string,
	now time.Time,
) (*models.CoachingPackage, error) {
	pkg, ok := r.s.state.packages[packageID]
	if !ok || pkg.Status != models.PackagePending {
		return nil, pgx.ErrNoRows
	}
	expiresAt := now.AddDate(0, 0, pkg.ValidityDays)
	pkg.Status = models.PackageActive
	pkg.StripeCheckoutSessionID = &checkoutSessionID
	pkg.ExpiresAt = &expiresAt
	r.s.state.packages[packageID] = pkg
	return &pkg, nil
}

type memoryCompanies struct{ s *memoryStore }

func (r memoryCompanies) GetByID(_ context.Context, companyID int64) (*models.RecruiterCompany, error) {
	company, ok := r.s.state.companies[companyID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &company, nil
}

func (r memoryCompanies) GetForMember(ctx context.Context, userID int64) (*models.RecruiterCompany, error) {
	companyID, ok := r.s.state.members[userID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return r.GetByID(ctx, companyID)
}

func (r memoryCompanies) DebitCredits(_ context.Context, companyID int64, amount int64) (*models.RecruiterCompany, error) {
	company, ok := r.s.state.companies[companyID]
	if !ok || company.CreditBalance < amount {
		return nil, pgx.ErrNoRows
	}
	company.CreditBalance -= amount
	r.s.state.companies[companyID] = company
	return &company, nil
}

func (r memoryCompanies) CreditCredits(_ context.Context, companyID int64, amount int64) (*models.RecruiterCompany, error) {
	company, ok := r.s.state.companies[companyID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	company.CreditBalance += amount
	r.s.state.companies[companyID] = company
	return &company, nil
}

func (r memoryCompanies) InsertLedgerEntry(_ context.Context, input repository.LedgerEntryInput) (bool, error) {
	if err := r.s.fault("InsertLedgerEntry"); err != nil {
		return false, err
	}
	for _, entry := range r.s.state.ledger {
		if entry.Reference == input.Reference {
			return false, nil
		}
	}
	r.s.state.ledger = append(r.s.state.ledger, models.CreditLedgerEntry{
		ID:           r.s.id(),
		CompanyID:    input.CompanyID,
		Delta:        input.Delta,
		Reason:       input.Reason,
		Reference:    input.Reference,
		BalanceAfter: input.BalanceAfter,
	})
	return true, nil
}

func (r memoryCompanies) SetLedgerBalance(_ context.Context, reference string, balanceAfter int64) error {
	for i, entry := range r.s.state.ledger {
		if entry.Reference == reference {
			balance := balanceAfter
			r.s.state.ledger[i].BalanceAfter = &balance
		}
	}
	return nil
}

func (r memoryCompanies) ListLedger(_ context.Context, companyID int64, limit int) ([]models.CreditLedgerEntry, error) {
	entries := make([]models.CreditLedgerEntry, 0)
	for i := len(r.s.state.ledger) - 1; i >= 0 && len(entries) < limit; i-- {
		if r.s.state.ledger[i].CompanyID == companyID {
			entries = append(entries, r.s.state.ledger[i])
		}
	}
	return entries, nil
}

type memoryRequests struct{ s *memoryStore }

func (r memoryRequests) Create(_ context.Context, input repository.CreateInterviewRequestInput) (*models.InterviewRequest, error) {
	request := models.InterviewRequest{
		ID:           r.s.id(),
		CompanyID:    input.CompanyID,
		RecruiterID:  input.RecruiterID,
		CandidateID:  input.CandidateID,
		RoleTitle:    input.RoleTitle,
		Message:      input.Message,
		CreditsSpent: input.CreditsSpent,
		Status:       models.InterviewRequestPending,
	}
	r.s.state.requests[request.ID] = request
	return &request, nil
}

func (r memoryRequests) ListByCompany(_ context.Context, companyID int64) ([]models.InterviewRequest, error) {
	return r.filter(func(request models.InterviewRequest) bool { return request.CompanyID == companyID }), nil
}

func (r memoryRequests) ListByCandidate(_ context.Context, candidateID int64) ([]models.InterviewRequest, error) {
	return r.filter(func(request models.InterviewRequest) bool { return request.CandidateID == candidateID }), nil
}

func (r memoryRequests) filter(keep func(models.InterviewRequest) bool) []models.InterviewRequest {
	requests := make([]models.InterviewRequest, 0)
	for _, request := range r.s.state.requests {
		if keep(request) {
			requests = append(requests, request)
		}
	}
	sort.Slice(requests, func(i, j int) bool { return requests[i].ID > requests[j].ID })
	return requests
}

func (r memoryRequests) GetByID(_ context.Context, requestID int64) (*models.InterviewRequest, error) {
	request, ok := r.s.state.requests[requestID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &request, nil
}

func (r memoryRequests) Respond(
	_ context.Context,
	requestID int64,
	candidateID int64,
	status string,
) (*models.InterviewRequest, error) {
	request, ok := r.s.state.requests[requestID]
	if !ok || request.CandidateID != candidateID || request.Status != models.InterviewRequestPending {
		return nil, pgx.ErrNoRows
	}
	request.Status = status
	r.s.state.requests[requestID] = request
	return &request, nil
}

type memoryPayouts struct{ s *memoryStore }

func (r memoryPayouts) Create(_ context.Context, input repository.CreatePayoutInput) (*models.InterviewerPayout, error) {
	payout := models.InterviewerPayout{
		ID:             r.s.id(),
		InterviewerID:  input.InterviewerID,
		AmountCents:    input.AmountCents,
		Currency:       input.Currency,
		SessionIDs:     append([]int64(nil), input.SessionIDs...),
		Status:         models.PayoutPending,
		IdempotencyKey: input.IdempotencyKey,
	}
	r.s.state.payouts[payout.ID] = payout
	return &payout, nil
}

func (r memoryPayouts) GetByID(_ context.Context, payoutID int64) (*models.InterviewerPayout, error) {
	payout, ok := r.s.state.payouts[payoutID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &payout, nil
}

func (r memoryPayouts) ListByInterviewer(_ context.Context, interviewerID int64) ([]models.InterviewerPayout, error) {
	payouts := make([]models.InterviewerPayout, 0)
	for _, payout := range r.s.state.payouts {
		if payout.InterviewerID == interviewerID {
			payouts = append(payouts, payout)
		}
	}
	sort.Slice(payouts, func(i, j int) bool { return payouts[i].ID > payouts[j].ID })
	return payouts, nil
}

func (r memoryPayouts) MarkCompleted(_ context.Context, payoutID int64, transferID string) (*models.InterviewerPayout, error) {
	if err := r.s.fault("MarkCompleted"); err != nil {
		return nil, err
	}
	payout, ok := r.s.state.payouts[payoutID]
	if !ok || payout.Status != models.PayoutPending {
		return nil, pgx.ErrNoRows
	}
	payout.Status = models.PayoutCompleted
	payout.StripeTransferID = &transferID
	r.s.state.payouts[payoutID] = payout
	return &payout, nil
}

func (r memoryPayouts) MarkFailed(_ context.Context, payoutID int64, reason string) (*models.InterviewerPayout, error) {
	payout, ok := r.s.state.payouts[payoutID]
	if !ok || payout.Status != models.PayoutPending {
		return nil, pgx.ErrNoRows
	}
	payout.Status = models.PayoutFailed
	payout.FailureReason = &reason
	r.s.state.payouts[payoutID] = payout
	return &payout, nil
}

type memoryWebhooks struct{ s *memoryStore }

func (r memoryWebhooks) MarkProcessed(_ context.Context, eventID string, eventType string) (bool, error) {
	if _, ok := r.s.state.webhooks[eventID]; ok {
		return false, nil
	}
	r.s.state.webhooks[eventID] = eventType
	return true, nil
}

// stubGateway returns the same refund for a repeated idempotency key, as the processor does.
type stubGateway struct {
	refundErr   error
	transferErr error
	refunds     []payments.RefundRequest
	transfers   []payments.TransferRequest
	byKey       map[string]*payments.Refund
}

func (g *stubGateway) Refund(_ context.Context, req payments.RefundRequest) (*payments.Refund, error) {
	g.refunds = append(g.refunds, req)
	if g.refundErr != nil {
		return nil, g.refundErr
	}
	if g.byKey == nil {
		g.byKey = map[string]*payments.Refund{}
	}
	if refund, ok := g.byKey[req.IdempotencyKey]; ok {
		return refund, nil
	}
	refund := &payments.Refund{
		ID:          fmt.Sprintf("re_%d", len(g.byKey)+1),
		AmountCents: req.AmountCents,
		Status:      "succeeded",
	}
	g.byKey[req.IdempotencyKey] = refund
	return refund, nil
}

func (g *stubGateway) Transfer(_ context.Context, req payments.TransferRequest) (*payments.Transfer, error) {
	g.transfers = append(g.transfers, req)
	if g.transferErr != nil {
		return nil, g.transferErr
	}
	return &payments.Transfer{ID: fmt.Sprintf("tr_%d", len(g.transfers)), AmountCents: req.AmountCents}, nil
}

type recordingPublisher struct {
	types []string
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) error {
	p.types = append(p.types, event.Type)
	return nil
}
