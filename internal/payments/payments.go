package payments

import (
	"context"
	"errors"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrMalformedEvent   = errors.New("malformed webhook event")
)

const (
	EventCheckoutSessionCompleted = "checkout.session.completed"
	EventSubscriptionUpdated      = "customer.subscription.updated"
	EventSubscriptionDeleted      = "customer.subscription.deleted"
	EventChargeRefunded           = "charge.refunded"
)

type RefundRequest struct {
	PaymentIntentID string
	AmountCents     int64
	IdempotencyKey  string
	Metadata        map[string]string
}

type Refund struct {
	ID          string
	AmountCents int64
	Status      string
}

type TransferRequest struct {
	DestinationAccount string
	AmountCents        int64
	Currency           string
	IdempotencyKey     string
	TransferGroup      string
	Metadata           map[string]string
}

type Transfer struct {
	ID          string
	AmountCents int64
}

// Gateway moves money through the payment processor. Calls with the same idempotency
// key return the original result instead of moving money twice.
type Gateway interface {
	Refund(ctx context.Context, req RefundRequest) (*Refund, error)
	Transfer(ctx context.Context, req TransferRequest) (*Transfer, error)
}

type CheckoutSession struct {
	ID              string
	PaymentIntentID string
	CustomerID      string
	SubscriptionID  string
	Metadata        map[string]string
}

type Subscription struct {
	ID         string
	Status     string
	CustomerID string
	Metadata   map[string]string
}

type Charge struct {
	ID              string
	PaymentIntentID string
	RefundID        string
	AmountRefunded  int64
	Refunded        bool
}

// Event is a verified processor event. At most one of the typed objects is set,
// depending on Type; unknown types carry none.
type Event struct {
	ID           string
	Type         string
	Checkout     *CheckoutSession
	Subscription *Subscription
	Charge       *Charge
}

type Verifier interface {
	VerifyEvent(payload []byte, signatureHeader string) (*Event, error)
}
