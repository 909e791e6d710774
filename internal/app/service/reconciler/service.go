package reconciler

import (
	"context"
	"errors"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/perkflow/perkflow/internal/app/service/ledger"
	"github.com/perkflow/perkflow/internal/app/service/notifier"
	"github.com/perkflow/perkflow/internal/app/service/referral"
	"github.com/perkflow/perkflow/internal/models"
	"github.com/perkflow/perkflow/internal/platform/stripeapi"
	"github.com/perkflow/perkflow/pkg/apperr"
	"github.com/perkflow/perkflow/pkg/config"
	"github.com/perkflow/perkflow/pkg/logctx"
	"github.com/perkflow/perkflow/pkg/metrics"
	"github.com/perkflow/perkflow/pkg/tool"
)

// handlerFunc processes one verified provider event.
type handlerFunc func(ctx context.Context, event stripe.Event) error

// Service is the single entry point for provider webhook deliveries. It
// treats the webhook stream as an unordered, at-least-once, possibly
// duplicated feed: every handler is safe to apply twice and safe to apply
// out of order.
type Service struct {
	webhookSecret string
	db            *gorm.DB
	ledgerSvc     *ledger.Service
	referralSvc   *referral.Service
	notifierSvc   *notifier.Service
	provider      stripeapi.Provider
	log           *zap.SugaredLogger

	// handlers maps provider event types to their branch. Anything absent
	// is acknowledged and ignored.
	handlers map[string]handlerFunc
}

func NewService(
	cfg *config.Config,
	db *gorm.DB,
	ledgerSvc *ledger.Service,
	referralSvc *referral.Service,
	notifierSvc *notifier.Service,
	provider stripeapi.Provider,
	log *zap.SugaredLogger,
) *Service {
	s := &Service{
		webhookSecret: cfg.Stripe.WebhookSecret,
		db:            db,
		ledgerSvc:     ledgerSvc,
		referralSvc:   referralSvc,
		notifierSvc:   notifierSvc,
		provider:      provider,
		log:           log,
	}
	s.handlers = map[string]handlerFunc{
		"checkout.session.completed":    s.handleCheckoutCompleted,
		"customer.subscription.created": s.handleSubscriptionCreated,
		"customer.subscription.updated": s.handleSubscriptionUpdated,
		"customer.subscription.deleted": s.handleSubscriptionDeleted,
	}
	return s
}

// Handle verifies, records and dispatches one raw webhook delivery.
//
// Verification failures (bad signature, malformed payload) return an error
// and mutate nothing. Everything after verification honors the 200-ack
// contract: branch failures are logged and swallowed so the provider does
// not build a retry storm against this endpoint.
func (s *Service) Handle(ctx context.Context, payload []byte, sigHeader string) error {
	event, err := webhook.ConstructEvent(payload, sigHeader, s.webhookSecret)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues("unknown", "rejected").Inc()
		return apperr.Verification(err)
	}

	log := logctx.FromCtx(ctx, s.log).With("event_id", event.ID, "event_type", event.Type)
	log.Infow("webhook_received")

	s.recordEvent(ctx, event)

	h, ok := s.handlers[string(event.Type)]
	if !ok {
		log.Infow("webhook_type_ignored")
		metrics.WebhookEvents.WithLabelValues(string(event.Type), "ignored").Inc()
		return nil
	}

	if err := h(ctx, event); err != nil {
		// Branch isolation: the provider still gets its ack.
		log.Errorw("webhook_branch_failed", "err", err)
		metrics.WebhookEvents.WithLabelValues(string(event.Type), "error").Inc()
		return nil
	}

	metrics.WebhookEvents.WithLabelValues(string(event.Type), "handled").Inc()
	return nil
}

// recordEvent appends the event to the audit log. The unique index on the
// provider event id is the deduplication guard: a conflict means the event
// was seen before, which is logged and skipped. Handlers still run because
// they are idempotent. Any other storage failure is non-fatal.
func (s *Service) recordEvent(ctx context.Context, event stripe.Event) {
	row := &models.WebhookEvent{
		ID:      tool.GenerateUUIDV7(),
		EventID: event.ID,
		Type:    string(event.Type),
		Data:    datatypes.JSON(event.Data.Raw),
	}
	err := s.db.WithContext(ctx).Create(row).Error
	if err == nil {
		return
	}
	log := logctx.FromCtx(ctx, s.log)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		log.Infow("webhook_event_duplicate", "event_id", event.ID)
		metrics.WebhookEvents.WithLabelValues(string(event.Type), "duplicate").Inc()
		return
	}
	log.Errorw("webhook_event_log_failed", "event_id", event.ID, "err", err)
}
