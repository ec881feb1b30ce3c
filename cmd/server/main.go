// Helpdesk triages Free Mobile customer messages: it classifies chat
// messages, detects complaints in social posts and replies to them.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/linnemanlabs/go-core/cfg"
	"github.com/linnemanlabs/go-core/health"
	"github.com/linnemanlabs/go-core/httpserver"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/metrics"
	"github.com/linnemanlabs/go-core/opshttp"
	"github.com/linnemanlabs/go-core/otelx"
	"github.com/linnemanlabs/go-core/prof"
	v "github.com/linnemanlabs/go-core/version"
)

const (
	appName   = "helpdesk"
	component = "server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal error:", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	v.AppName = appName
	v.Component = component
	vi := v.Get()

	var opts options
	opts.register(flag.CommandLine)
	var showVersion bool
	flag.BoolVar(&showVersion, "V", false, "Print version+build information and exit")

	// Command line wins; the environment only fills flags left unset.
	flag.Parse()
	if showVersion {
		fmt.Printf(
			"%s (%s) %s (commit=%s, commit_date=%s, build_id=%s, build_date=%s, go=%s, dirty=%v)\n",
			vi.AppName, vi.Component, vi.Version, vi.Commit, vi.CommitDate, vi.BuildId, vi.BuildDate, vi.GoVersion,
			vi.VCSDirty != nil && *vi.VCSDirty,
		)
		return nil
	}
	cfg.FillFromEnv(flag.CommandLine, envPrefix, func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})
	if err := opts.validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	appCfg := &opts.app

	lg, err := log.New(opts.log.ToOptions(v.AppName))
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = lg.Sync() }()

	L := lg.With("component", vi.Component)
	ctx = log.WithContext(ctx, L)

	L.Info(ctx, "starting helpdesk",
		"version", vi.Version,
		"commit", vi.Commit,
		"build_id", vi.BuildId,
		"build_date", vi.BuildDate,
		"go_version", vi.GoVersion,
		"http_port", appCfg.APIPort,
		"admin_port", opts.ops.Port,
		"enable_pyroscope", opts.prof.EnablePyroscope,
		"enable_tracing", opts.trace.EnableTracing,
		"otlp_endpoint", opts.trace.OTLPEndpoint,
		"trusted_proxy_hops", opts.mw.TrustedProxyHops,
		"llm_provider", appCfg.LLMProvider,
		"vector_store", appCfg.VectorStore,
		"database", appCfg.DatabaseURL != "",
		"responder_enabled", appCfg.MastodonInstanceURL != "",
	)

	// Profiling starts first so the whole process lifetime is covered.
	profOpts := opts.prof.ToOptions()
	profOpts.AppName = v.AppName
	profOpts.Tags = map[string]string{
		"app":       v.AppName,
		"component": v.Component,
		"version":   vi.Version,
		"commit":    vi.Commit,
		"build_id":  vi.BuildId,
	}
	stopProf, profErr := prof.Start(ctx, profOpts)
	if profErr != nil {
		L.Error(ctx, profErr, "pyroscope start failed", "pyro_server", opts.prof.PyroServer)
	}

	traceOpts := opts.trace.ToOptions()
	traceOpts.Service = v.AppName
	traceOpts.Component = v.Component
	traceOpts.Version = v.Version
	shutdownOtel, err := otelx.Init(ctx, traceOpts)
	if err != nil {
		L.Error(ctx, err, "otel init failed")
	}

	m := metrics.New()
	m.SetBuildInfoFromVersion(v.AppName, component, &vi)
	m.SetProfilingActive(profErr == nil && opts.prof.EnablePyroscope)

	comps, err := buildComponents(ctx, appCfg, L, m.Registry())
	if err != nil {
		L.Error(ctx, err, "failed to initialize components")
		return err
	}
	defer comps.close()

	go purgeExpiredLinks(ctx, comps.links, linkPurgeInterval, L)

	if comps.responder != nil {
		go func() {
			if err := comps.responder.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				L.Error(ctx, err, "responder stopped")
			}
		}()
	}

	// Readiness fails once the gate closes so traffic drains before exit.
	var gate health.ShutdownGate
	readiness := health.All(gate.Probe())
	liveness := health.Fixed(true, "")

	opsOpts := opts.ops.ToOptions()
	opsOpts.Metrics = m.Handler()
	opsOpts.Health = liveness
	opsOpts.Readiness = readiness
	opsOpts.UseRecoverMW = true
	opsOpts.OnPanic = m.IncHttpPanic

	// The ops listener serves metrics, probes and pprof to internal
	// monitoring only.
	stopOps, err := opshttp.Start(ctx, L, opsOpts)
	if err != nil {
		L.Error(ctx, err, "failed to start ops http listener")
		return err
	}

	api := apiHandler{
		api:         comps.api,
		logger:      L,
		metrics:     func(h http.Handler) http.Handler { return m.Middleware(h) },
		trustedHops: opts.mw.TrustedProxyHops,
		healthz:     health.HealthzHandler(liveness),
		readyz:      health.ReadyzHandler(readiness),
	}
	httpOpts, err := opts.http.ToOptions()
	if err != nil {
		L.Error(ctx, err, "invalid http config")
		_ = stopOps(context.Background())
		return err
	}
	stopAPI, err := httpserver.Start(ctx, fmt.Sprintf(":%d", appCfg.APIPort), api.handler(), L, httpOpts)
	if err != nil {
		L.Error(ctx, err, "failed to start api http listener")
		_ = stopOps(context.Background())
		return err
	}

	if err := notifySystemd(); err != nil {
		// systemd kills the unit after its start timeout if this matters.
		L.Warn(ctx, "failed to notify systemd of readiness", "error", err)
	}

	<-ctx.Done()
	L.Info(context.Background(), "shutdown signal received")

	gate.Set("draining")
	waitDrain(L, time.Duration(appCfg.DrainSeconds)*time.Second)

	stopAll(L, time.Duration(appCfg.ShutdownBudgetSeconds)*time.Second, []stopper{
		{"api http server", stopAPI},
		{"responder", func(context.Context) error {
			if comps.responder != nil {
				comps.responder.Stop()
			}
			return nil
		}},
		{"ops http server", stopOps},
		{"otel", shutdownOtel},
	})
	if stopProf != nil {
		stopProf()
	}

	L.Info(context.Background(), "shutdown complete")
	return nil
}

func notifySystemd() error {
	// NOTIFY_SOCKET is set for Type=notify units.
	addr := os.Getenv("NOTIFY_SOCKET")
	if addr == "" {
		return fmt.Errorf("NOTIFY_SOCKET not set, skipping systemd notify")
	}
	conn, err := net.Dial("unixgram", addr) //nolint:gosec,noctx // addr comes from systemd; unixgram dial has no context variant
	if err != nil {
		return fmt.Errorf("systemd notify failed: dial failed: %w", err)
	}
	defer func() { _ = conn.Close() }()
	if _, err := conn.Write([]byte("READY=1")); err != nil {
		return fmt.Errorf("systemd notify failed: write failed: %w", err)
	}
	return nil
}
