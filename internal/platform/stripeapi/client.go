package stripeapi

import (
	"context"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.uber.org/fx"

	"github.com/perkflow/perkflow/pkg/config"
	"github.com/perkflow/perkflow/pkg/types"
)

// CheckoutParams describes a provider checkout session to create.
type CheckoutParams struct {
	CustomerID string
	PriceID    string
	// TrialDays is only forwarded when > 0.
	TrialDays  int
	SuccessURL string
	CancelURL  string
	Metadata   map[string]string
}

// CheckoutSession is the provider-issued redirect target.
type CheckoutSession struct {
	ID  string
	URL string
}

// CheckoutSessionState is the polled state of an existing session.
type CheckoutSessionState struct {
	ID             string
	Paid           bool
	Status         string
	PaymentStatus  string
	SubscriptionID string
	CustomerID     string
	Metadata       map[string]string
}

// SubscriptionState is the provider-reported subscription snapshot in
// neutral types (unix timestamps already converted).
type SubscriptionState struct {
	ID               string
	Status           types.SubscriptionStatus
	TrialEnd         *time.Time
	CurrentPeriodEnd *time.Time
}

// Provider is the remote payment-provider boundary consumed by the checkout
// orchestrator, the plan registry and the webhook reconciler.
type Provider interface {
	CreateCustomer(ctx context.Context, email, name string, metadata map[string]string) (string, error)
	CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSessionState, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*SubscriptionState, error)
	SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) error

	CreateProduct(ctx context.Context, name, description string) (string, error)
	UpdateProductName(ctx context.Context, productID, name string) error
	CreatePrice(ctx context.Context, productID string, amount int64, interval types.PlanInterval, intervalCount int) (string, error)
}

// Client implements Provider on top of stripe-go. The API key is scoped to
// this client instead of the SDK's package-level default.
type Client struct {
	sc *client.API
}

var _ Provider = (*Client)(nil)

func New(cfg *config.Config) *Client {
	sc := &client.API{}
	sc.Init(cfg.Stripe.SecretKey, nil)
	return &Client{sc: sc}
}

func (c *Client) CreateCustomer(ctx context.Context, email, name string, metadata map[string]string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
	}
	if name != "" {
		params.Name = stripe.String(name)
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	cust, err := c.sc.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("create customer: %w", err)
	}
	return cust.ID, nil
}

func (c *Client) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error) {
	subData := &stripe.CheckoutSessionSubscriptionDataParams{
		Metadata: p.Metadata,
	}
	if p.TrialDays > 0 {
		subData.TrialPeriodDays = stripe.Int64(int64(p.TrialDays))
	}
	params := &stripe.CheckoutSessionParams{
		Customer: stripe.String(p.CustomerID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(p.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:          stripe.String(p.SuccessURL + "?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:           stripe.String(p.CancelURL),
		SubscriptionData:    subData,
		AllowPromotionCodes: stripe.Bool(true),
	}
	params.Context = ctx
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	sess, err := c.sc.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

func (c *Client) GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSessionState, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := c.sc.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return nil, fmt.Errorf("get checkout session: %w", err)
	}
	state := &CheckoutSessionState{
		ID:            sess.ID,
		Paid:          sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		Status:        string(sess.Status),
		PaymentStatus: string(sess.PaymentStatus),
		Metadata:      sess.Metadata,
	}
	if sess.Subscription != nil {
		state.SubscriptionID = sess.Subscription.ID
	}
	if sess.Customer != nil {
		state.CustomerID = sess.Customer.ID
	}
	return state, nil
}

func (c *Client) GetSubscription(ctx context.Context, subscriptionID string) (*SubscriptionState, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	sub, err := c.sc.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return &SubscriptionState{
		ID:               sub.ID,
		Status:           types.SubscriptionStatus(sub.Status),
		TrialEnd:         unixTime(sub.TrialEnd),
		CurrentPeriodEnd: unixTime(sub.CurrentPeriodEnd),
	}, nil
}

func (c *Client) SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) error {
	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(cancel),
	}
	params.Context = ctx
	if _, err := c.sc.Subscriptions.Update(subscriptionID, params); err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	return nil
}

func (c *Client) CreateProduct(ctx context.Context, name, description string) (string, error) {
	params := &stripe.ProductParams{
		Name: stripe.String(name),
	}
	if description != "" {
		params.Description = stripe.String(description)
	}
	params.Context = ctx
	prod, err := c.sc.Products.New(params)
	if err != nil {
		return "", fmt.Errorf("create product: %w", err)
	}
	return prod.ID, nil
}

func (c *Client) UpdateProductName(ctx context.Context, productID, name string) error {
	params := &stripe.ProductParams{
		Name: stripe.String(name),
	}
	params.Context = ctx
	if _, err := c.sc.Products.Update(productID, params); err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	return nil
}

func (c *Client) CreatePrice(ctx context.Context, productID string, amount int64, interval types.PlanInterval, intervalCount int) (string, error) {
	params := &stripe.PriceParams{
		Product:    stripe.String(productID),
		UnitAmount: stripe.Int64(amount),
		Currency:   stripe.String(string(stripe.CurrencyUSD)),
		Recurring: &stripe.PriceRecurringParams{
			Interval:      stripe.String(string(interval)),
			IntervalCount: stripe.Int64(int64(intervalCount)),
		},
	}
	params.Context = ctx
	price, err := c.sc.Prices.New(params)
	if err != nil {
		return "", fmt.Errorf("create price: %w", err)
	}
	return price.ID, nil
}

func unixTime(ts int64) *time.Time {
	if ts <= 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}

var Module = fx.Options(
	fx.Provide(
		fx.Annotate(New, fx.As(new(Provider))),
	),
)
