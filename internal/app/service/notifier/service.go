package notifier

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/perkflow/perkflow/internal/models"
	"github.com/perkflow/perkflow/pkg/config"
	"github.com/perkflow/perkflow/pkg/logctx"
)

// Service is the fire-and-forget notification sink. No caller awaits it and
// no failure here may surface to a request path. Without an API key the
// service only logs, which keeps local development mail-free.
type Service struct {
	cfg    config.EmailConfig
	client *sendgrid.Client
	db     *gorm.DB
	log    *zap.SugaredLogger
}

func NewService(cfg *config.Config, db *gorm.DB, log *zap.SugaredLogger) *Service {
	s := &Service{cfg: cfg.Email, db: db, log: log}
	if cfg.Email.SendgridAPIKey != "" {
		s.client = sendgrid.NewSendClient(cfg.Email.SendgridAPIKey)
	}
	return s
}

// SubscriptionActivated emails the purchaser after a completed checkout.
// Runs asynchronously; errors are logged only.
func (s *Service) SubscriptionActivated(ctx context.Context, userID string, sub *models.Subscription) {
	log := logctx.FromCtx(ctx, s.log)
	go func() {
		var user models.User
		if err := s.db.Where("id = ?", userID).First(&user).Error; err != nil {
			log.Warnw("notify_load_user_failed", "user_id", userID, "err", err)
			return
		}

		planName := "your plan"
		if sub.Plan != nil {
			planName = sub.Plan.Name
		}
		subject := "Your subscription is active"
		body := fmt.Sprintf("Hi %s,\n\nYour subscription to %s is now active.", user.FullName, planName)
		if sub.TrialEnd != nil {
			body += fmt.Sprintf(" Your trial runs until %s.", sub.TrialEnd.Format("Jan 2, 2006"))
		}
		body += "\n\nThanks,\n" + s.cfg.FromName

		if s.client == nil {
			log.Infow("notify_email_skipped_no_api_key", "to", user.Email, "subject", subject)
			return
		}

		msg := mail.NewSingleEmail(
			mail.NewEmail(s.cfg.FromName, s.cfg.FromEmail),
			subject,
			mail.NewEmail(user.FullName, user.Email),
			body,
			"",
		)
		resp, err := s.client.Send(msg)
		if err != nil {
			log.Errorw("notify_email_send_failed", "to", user.Email, "err", err)
			return
		}
		if resp.StatusCode >= 400 {
			log.Errorw("notify_email_rejected", "to", user.Email, "status", resp.StatusCode)
			return
		}
		log.Infow("notify_email_sent", "to", user.Email, "subject", subject)
	}()
}

// Module exposes the notifier via Fx.
var Module = fx.Options(
	fx.Provide(NewService),
)
