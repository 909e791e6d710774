package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/perkflow/perkflow/internal/app/api/server"
	"github.com/perkflow/perkflow/internal/app/service/checkout"
	"github.com/perkflow/perkflow/internal/app/service/ledger"
	"github.com/perkflow/perkflow/internal/app/service/notifier"
	"github.com/perkflow/perkflow/internal/app/service/plan"
	"github.com/perkflow/perkflow/internal/app/service/reconciler"
	"github.com/perkflow/perkflow/internal/app/service/referral"
	"github.com/perkflow/perkflow/internal/platform/db"
	"github.com/perkflow/perkflow/internal/platform/stripeapi"
	"github.com/perkflow/perkflow/pkg/config"
	"github.com/perkflow/perkflow/pkg/logger"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	stripeapi.Module,
	server.Module,
	plan.Module,
	ledger.Module,
	referral.Module,
	notifier.Module,
	checkout.Module,
	reconciler.Module,
)
