package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/gideonjohnson/PrepCoach-sub004/internal/models"
	"github.com/gideonjohnson/PrepCoach-sub004/internal/services"
)

type stubPayoutService struct {
	requestErr  error
	lastActorID int64
}

func (s *stubPayoutService) RequestPayout(_ context.Context, interviewerID int64) (*models.InterviewerPayout, error) {
	s.lastActorID = interviewerID
	if s.requestErr != nil {
		return nil, s.requestErr
	}
	return &models.InterviewerPayout{ID: 1, InterviewerID: interviewerID, AmountCents: 17000}, nil
}

func (s *stubPayoutService) ListPayouts(_ context.Context, interviewerID int64) ([]models.InterviewerPayout, error) {
	s.lastActorID = interviewerID
	return nil, nil
}

func TestRequestPayoutStatuses(t *testing.T) {
	tests := []struct {
		name string
		role string
		err  error
		want int
	}{
		{"created", models.RoleInterviewer, nil, http.StatusCreated},
		{"nothing eligible", models.RoleInterviewer, services.ErrNoPayoutAvailable, http.StatusBadRequest},
		{"transfer failed", models.RoleInterviewer, services.ErrPaymentProcessor, http.StatusBadGateway},
		{"candidate", models.RoleCandidate, nil, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := &stubPayoutService{requestErr: tt.err}
			app := fiber.New()
			withIdentity(app, "7", tt.role)
			app.Post("/api/v1/payouts", NewPayoutHandler(service, zerolog.Nop()).RequestPayout)

			resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/payouts", nil))
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, resp.StatusCode)
			}
		})
	}
}
