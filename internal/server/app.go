// Package server assembles the monitor and its optional status server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/pagewatch/internal/api"
	"github.com/JakeFAU/pagewatch/internal/clock/system"
	"github.com/JakeFAU/pagewatch/internal/config"
	"github.com/JakeFAU/pagewatch/internal/diff"
	collyfetcher "github.com/JakeFAU/pagewatch/internal/fetcher/colly"
	"github.com/JakeFAU/pagewatch/internal/hash/sha256"
	"github.com/JakeFAU/pagewatch/internal/id/uuid"
	"github.com/JakeFAU/pagewatch/internal/logging"
	"github.com/JakeFAU/pagewatch/internal/monitor"
	"github.com/JakeFAU/pagewatch/internal/normalize"
	smtpnotifier "github.com/JakeFAU/pagewatch/internal/notifier/smtp"
	"github.com/JakeFAU/pagewatch/internal/recorder/xlsx"
)

// App contains the application's dependencies.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	monitor   *monitor.Monitor
	recorder  *xlsx.Recorder
	apiServer *api.Server
}

// Option customizes NewApp.
type Option func(*options)

type options struct {
	transport http.RoundTripper
	notifier  monitor.Notifier
}

// WithTransport routes page fetches through rt.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.transport = rt }
}

// WithNotifier replaces the SMTP notifier.
func WithNotifier(n monitor.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// NewApp creates a new App with the given configuration. cfg.Target must
// already hold a validated URL and output name.
func NewApp(cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	clk, err := system.NewInZone(cfg.Monitor.Timezone)
	if err != nil {
		return nil, err
	}
	recorder, err := xlsx.New(cfg.Target.Output, clk.Location(), logging.Component(logger, "recorder"))
	if err != nil {
		return nil, fmt.Errorf("init recorder: %w", err)
	}

	notifier := o.notifier
	if notifier == nil {
		n, err := smtpnotifier.New(smtpnotifier.Config{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			StartTLS: cfg.SMTP.StartTLS,
		}, logging.Component(logger, "notifier"))
		if err != nil {
			return nil, fmt.Errorf("init notifier: %w", err)
		}
		notifier = n
	}

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:     cfg.HTTP.UserAgent,
		RespectRobots: cfg.HTTP.RespectRobots,
		Timeout:       cfg.HTTP.Timeout,
		Transport:     o.transport,
	}, logging.Component(logger, "fetcher"))

	mon, err := monitor.New(
		monitor.Config{
			URL:               cfg.Target.URL,
			Recipient:         cfg.Notify.Recipient,
			Interval:          cfg.Monitor.Interval,
			Backoff:           cfg.Monitor.Backoff,
			AnnounceAvailable: cfg.Notify.AnnounceAvailable,
		},
		fetcher,
		normalize.New(),
		diff.New(),
		recorder,
		notifier,
		clk,
		uuid.New(),
		sha256.New(),
		logging.Component(logger, "monitor"),
	)
	if err != nil {
		return nil, fmt.Errorf("init monitor: %w", err)
	}

	return &App{
		cfg:       cfg,
		logger:    logger,
		monitor:   mon,
		recorder:  recorder,
		apiServer: api.NewServer(mon, logging.Component(logger, "api")),
	}, nil
}

// Monitor exposes the assembled monitor.
func (a *App) Monitor() *monitor.Monitor {
	return a.monitor
}

// Handler returns the status server's router.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run starts the application and blocks until the context is canceled, a
// termination signal arrives or the monitor fails.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var srv *http.Server
	if a.cfg.Server.Addr != "" {
		srv = &http.Server{
			Addr:              a.cfg.Server.Addr,
			Handler:           a.apiServer.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			a.logger.Info("status server started", zap.String("addr", a.cfg.Server.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("status server error", zap.Error(err))
			}
		}()
	}

	runErr := a.monitor.Run(ctx)
	a.logger.Info("shutdown initiated")

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("status server shutdown error", zap.Error(err))
		}
	}
	a.logger.Info("shutdown complete", zap.String("output", a.recorder.Path()))
	if runErr != nil {
		return fmt.Errorf("monitor: %w", runErr)
	}
	return nil
}
