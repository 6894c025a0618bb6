package app

import (
	"time"

	"github.com/coralpay/paysync/internal/app/api/server"
	"github.com/coralpay/paysync/internal/app/service/audit"
	"github.com/coralpay/paysync/internal/app/service/jobqueue"
	"github.com/coralpay/paysync/internal/app/service/normalizer"
	"github.com/coralpay/paysync/internal/app/service/pipeline"
	"github.com/coralpay/paysync/internal/app/service/worker"
	"github.com/coralpay/paysync/internal/platform/db"
	"github.com/coralpay/paysync/pkg/config"
	"github.com/coralpay/paysync/pkg/logger"
	"github.com/coralpay/paysync/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

func newDomainMetrics() *metrics.Domain {
	return metrics.NewDomain(prometheus.DefaultRegisterer)
}

var Module = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	fx.Provide(newDomainMetrics),
	audit.Module,
	normalizer.Module,
	pipeline.Module,
	jobqueue.Module,
	worker.Module,
	server.Module,
)
