package payments

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

type StripeGateway struct {
	api *client.API
}

// NewStripeGateway builds a gateway on the default Stripe backends when backends is nil.
func NewStripeGateway(secretKey string, backends *stripe.Backends) *StripeGateway {
	return &StripeGateway{api: client.New(secretKey, backends)}
}

func (g *StripeGateway) Refund(ctx context.Context, req RefundRequest) (*Refund, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.PaymentIntentID),
		Amount:        stripe.Int64(req.AmountCents),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.IdempotencyKey)
	for key, value := range req.Metadata {
		params.AddMetadata(key, value)
	}

	refund, err := g.api.Refunds.New(params)
	if err != nil {
		return nil, errors.Wrapf(err, "stripe refund %s", req.PaymentIntentID)
	}
	return &Refund{
		ID:          refund.ID,
		AmountCents: refund.Amount,
		Status:      string(refund.Status),
	}, nil
}

func (g *StripeGateway) Transfer(ctx context.Context, req TransferRequest) (*Transfer, error) {
	params := &stripe.TransferParams{
		Amount:      stripe.Int64(req.AmountCents),
		Currency:    stripe.String(req.Currency),
		Destination: stripe.String(req.DestinationAccount),
	}
	if req.TransferGroup != "" {
		params.TransferGroup = stripe.String(req.TransferGroup)
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.IdempotencyKey)
	for key, value := range req.Metadata {
		params.AddMetadata(key, value)
	}

	transfer, err := g.api.Transfers.New(params)
	if err != nil {
		return nil, errors.Wrapf(err, "stripe transfer to %s", req.DestinationAccount)
	}
	return &Transfer{
		ID:          transfer.ID,
		AmountCents: transfer.Amount,
	}, nil
}

type StripeVerifier struct {
	secret string
}

func NewStripeVerifier(secret string) *StripeVerifier {
	return &StripeVerifier{secret: secret}
}

// VerifyEvent checks the Stripe-Signature header against the raw body before anything
// in the payload is trusted.
func (v *StripeVerifier) VerifyEvent(payload []byte, signatureHeader string) (*Event, error) {
	if v.secret == "" || signatureHeader == "" {
		return nil, ErrInvalidSignature
	}

	raw, err := webhook.ConstructEventWithOptions(payload, signatureHeader, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, errors.Wrap(ErrInvalidSignature, err.Error())
	}

	event := &Event{ID: raw.ID, Type: string(raw.Type)}
	if raw.Data == nil {
		return event, nil
	}

	switch event.Type {
	case EventCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(raw.Data.Raw, &session); err != nil {
			return nil, errors.Wrap(ErrMalformedEvent, err.Error())
		}
		event.Checkout = &CheckoutSession{
			ID:       session.ID,
			Metadata: session.Metadata,
		}
		if session.PaymentIntent != nil {
			event.Checkout.PaymentIntentID = session.PaymentIntent.ID
		}
		if session.Customer != nil {
			event.Checkout.CustomerID = session.Customer.ID
		}
		if session.Subscription != nil {
			event.Checkout.SubscriptionID = session.Subscription.ID
		}
	case EventSubscriptionUpdated, EventSubscriptionDeleted:
		var subscription stripe.Subscription
		if err := json.Unmarshal(raw.Data.Raw, &subscription); err != nil {
			return nil, errors.Wrap(ErrMalformedEvent, err.Error())
		}
		event.Subscription = &Subscription{
			ID:       subscription.ID,
			Status:   string(subscription.Status),
			Metadata: subscription.Metadata,
		}
		if subscription.Customer != nil {
			event.Subscription.CustomerID = subscription.Customer.ID
		}
	case EventChargeRefunded:
		var charge stripe.Charge
		if err := json.Unmarshal(raw.Data.Raw, &charge); err != nil {
			return nil, errors.Wrap(ErrMalformedEvent, err.Error())
		}
		event.Charge = &Charge{
			ID:             charge.ID,
			AmountRefunded: charge.AmountRefunded,
			Refunded:       charge.Refunded,
		}
		if charge.PaymentIntent != nil {
			event.Charge.PaymentIntentID = charge.PaymentIntent.ID
		}
		if charge.Refunds != nil && len(charge.Refunds.Data) > 0 && charge.Refunds.Data[0] != nil {
			event.Charge.RefundID = charge.Refunds.Data[0].ID
		}
	}

	return event, nil
}
