package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/linnemanlabs/go-core/log"
)

// stopper is one component stopped during shutdown.
type stopper struct {
	name string
	fn   func(context.Context) error
}

// waitDrain sleeps for d so load balancers notice the failing readiness
// probe, or returns early on a second signal.
func waitDrain(L log.Logger, d time.Duration) {
	ctx := context.Background()
	L.Info(ctx, "sleeping for drain period", "drain_seconds", int(d.Seconds()))

	force := make(chan os.Signal, 1)
	signal.Notify(force, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(force)

	select {
	case <-time.After(d):
		L.Info(ctx, "drain period complete")
	case <-force:
		L.Warn(ctx, "second signal received, skipping drain")
	}
}

// stopAll stops components in order. Each gets an equal slice of budget;
// a failure is logged and the next component still runs. Nil functions are
// skipped.
func stopAll(L log.Logger, budget time.Duration, stoppers []stopper) {
	var live []stopper
	for _, s := range stoppers {
		if s.fn != nil {
			live = append(live, s)
		}
	}
	if len(live) == 0 {
		return
	}

	per := budget / time.Duration(len(live))
	ctx, cancel := context.WithTimeout(context.Background(), budget)
	defer cancel()

	for _, s := range live {
		sctx, scancel := context.WithTimeout(ctx, per)
		if err := s.fn(sctx); err != nil {
			L.Error(context.Background(), err, s.name+" shutdown")
		}
		scancel()
	}
}
