package worker

import (
	"context"
	"time"

	"github.com/coralpay/paysync/internal/app/service/jobqueue"
	"github.com/coralpay/paysync/internal/app/service/normalizer"
	"github.com/coralpay/paysync/internal/app/service/pipeline"
	cfgpkg "github.com/coralpay/paysync/pkg/config"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

func newPool(queue *jobqueue.Service, proc *pipeline.Service, norm *normalizer.Service, log *zap.SugaredLogger, cfg *cfgpkg.Config) *Pool {
	return NewPool(queue, proc, norm, log, Options{
		Workers:       cfg.Worker.Count,
		PollInterval:  time.Duration(cfg.Worker.PollIntervalSeconds) * time.Second,
		LeaseDuration: time.Duration(cfg.Worker.LeaseSeconds) * time.Second,
		ReapInterval:  time.Duration(cfg.Worker.ReapIntervalSeconds) * time.Second,
	})
}

func runPool(lc fx.Lifecycle, p *Pool) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			p.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			p.Stop()
			return nil
		},
	})
}

var Module = fx.Options(
	fx.Provide(newPool),
	fx.Invoke(runPool),
)
