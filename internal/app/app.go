// Package app wires configuration, infrastructure and features into a running bot.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/m3rciful/pdfbot/core/bootstrap"
	"github.com/m3rciful/pdfbot/core/logger"
	"github.com/m3rciful/pdfbot/core/metrics"
	"github.com/m3rciful/pdfbot/core/observability"
	coretelegram "github.com/m3rciful/pdfbot/core/telegram"
	tghelpers "github.com/m3rciful/pdfbot/core/telegram/helpers"
	"github.com/m3rciful/pdfbot/core/telegram/router"
	tgsender "github.com/m3rciful/pdfbot/core/telegram/sender"
	"github.com/m3rciful/pdfbot/internal/config"
	"github.com/m3rciful/pdfbot/internal/features"
	"github.com/m3rciful/pdfbot/internal/flow"
	"github.com/m3rciful/pdfbot/internal/i18n"
	"github.com/m3rciful/pdfbot/internal/language"
	"github.com/m3rciful/pdfbot/internal/payment"
	"github.com/m3rciful/pdfbot/internal/pdf"
	"github.com/m3rciful/pdfbot/internal/session"
	"github.com/m3rciful/pdfbot/migrations"

	tele "gopkg.in/telebot.v4"
)

// App owns every long-lived component of the bot.
type App struct {
	cfg    *config.Config
	infra  *bootstrap.Result
	tg     *tele.Bot
	disp   *tgsender.Dispatcher
	engine *flow.Engine
	bot    *features.Bot
	bundle *i18n.Bundle
	langs  *language.Service

	langCache *language.CachedStore
	sessions  *session.MemoryStore
	flush     func()

	stopServer context.CancelFunc
	group      *errgroup.Group
}

// Bootstrap connects the infrastructure and builds the features.
func Bootstrap(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	infra, err := bootstrap.Run(bootstrap.Options{
		Config:     &cfg.Config,
		Database:   cfg.Database,
		Migrations: migrations.FS,
	})
	if err != nil {
		return nil, err
	}
	a := &App{cfg: cfg, infra: infra, flush: func() {}}
	if err := a.build(); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build() error {
	cfg := a.cfg
	ctx := context.Background()

	sentrySink, flush, err := observability.InitSentry(cfg.Sentry)
	if err != nil {
		return fmt.Errorf("app: sentry: %w", err)
	}
	a.flush = flush
	sink := observability.Sink(observability.LogSink{})
	if sentrySink != nil {
		sink = observability.Multi(sink, sentrySink)
	}
	observability.SetDefault(sink)

	metrics.MustRegister(nil)

	if a.tg, err = coretelegram.NewBot(&cfg.Config); err != nil {
		return err
	}
	a.disp = tgsender.NewDispatcher(tgsender.Options{MaxRetries: 2})
	msg := &messenger{bot: a.tg, disp: a.disp}

	opts := flow.Options{
		Sink:        sink,
		LockPrefix:  cfg.Redis.Prefix,
		StepTimeout: cfg.Flow.StepTimeout,
		LockTTL:     cfg.Flow.LockTTL,
		ActorIdle:   cfg.Flow.ActorIdle,
	}
	if a.infra.Redis != nil {
		opts.Store = session.NewRedisStore(a.infra.Redis, cfg.Redis.Prefix, cfg.Flow.SessionTTL)
		opts.Locker = flow.NewRedisLocker(a.infra.Redis)
	} else {
		a.sessions = session.NewMemoryStore(cfg.Flow.SessionTTL)
		opts.Store = a.sessions
	}
	var bot *features.Bot
	opts.Notifier = flow.NotifierFunc(func(ctx context.Context, ev flow.Event, key string) error {
		return bot.Notify(ctx, ev, key)
	})
	a.engine = flow.NewEngine(opts)

	if a.langCache, err = language.NewCachedStore(language.NewSQLStore(a.infra.DB), cfg.Language.CacheSize, cfg.Language.CacheTTL); err != nil {
		return fmt.Errorf("app: language cache: %w", err)
	}
	a.langs = language.NewService(a.langCache, cfg.Language.Default)
	a.bundle = i18n.MustLoad()

	if err := os.MkdirAll(cfg.PDF.WorkDir, 0o750); err != nil {
		return fmt.Errorf("app: work dir: %w", err)
	}
	docs := pdf.NewService(msg, pdf.NewRunner(cfg.PDF.Workers, cfg.PDF.OpTimeout), cfg.PDF.WorkDir)

	bot, err = features.New(features.Deps{
		Engine:    a.engine,
		Messenger: msg,
		PDF:       docs,
		Bundle:    a.bundle,
		Languages: a.langs,
		Payments:  payment.NewService(cfg.Payment, payment.NewSQLRepo(a.infra.DB)),
		AdminID:   cfg.Telegram.AdminID,
		MaxFileMB: cfg.PDF.MaxFileMB,
	})
	if err != nil {
		return err
	}
	a.bot = bot

	logger.Info(ctx, "app", "built",
		slog.Int("flows", len(bot.Flows())),
		slog.Bool("redis", a.infra.Redis != nil),
		slog.Bool("payments", bot.Payments.Enabled()),
	)
	return nil
}

// TelegramRunOptions registers the commands and routes of the bot.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg := coretelegram.NewRegistry()
	for _, cmd := range a.bot.Commands() {
		if err := reg.RegisterCommand(cmd.Name, a.command(cmd)); err != nil {
			return coretelegram.RunOptions{}, err
		}
	}

	routes := router.MessageRoutes(router.MessageOptions{Handle: a.onMessage})
	routes = append(routes, router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID: a.cfg.Telegram.AdminID,
		OnAdminReject: func(c tele.Context) error {
			ctx := tghelpers.BuildContext(c)
			return a.bot.Notify(ctx, a.event(ctx, c), "fallback.text")
		},
	})...)
	routes = append(routes,
		router.CallbackRoute(router.CallbackOptions{
			Key:    a.bot.Router().Key,
			Handle: a.onCallback,
		}),
		router.UpdateRoute(tele.OnCheckout, "checkout", a.onCheckout),
		router.UpdateRoute(tele.OnPayment, "payment", a.onPayment),
	)

	return coretelegram.RunOptions{
		Config:      &a.cfg.Config,
		Registry:    reg,
		Bot:         a.tg,
		Dispatcher:  a.disp,
		Middlewares: coretelegram.DefaultMiddlewares(&a.cfg.Config, a.onLimited),
		Routes:      routes,
		OnStart:     a.start,
		OnStop:      a.stop,
	}, nil
}

// start runs the metrics and health listener next to the bot.
func (a *App) start(ctx context.Context, _ coretelegram.Runtime) error {
	srvCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(srvCtx)
	h := metrics.NewRouter(nil, a.health)
	g.Go(func() error {
		return metrics.Serve(gctx, a.cfg.Metrics.Listen, h)
	})
	a.stopServer = cancel
	a.group = g
	return nil
}

func (a *App) stop(ctx context.Context, _ coretelegram.Runtime) error {
	if a.group == nil {
		return nil
	}
	a.stopServer()
	err := a.group.Wait()
	if err != nil {
		logger.Warn(ctx, "http", "stop.fail", slog.String("err", err.Error()))
	}
	return err
}

func (a *App) health(ctx context.Context) error {
	if err := a.infra.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if a.infra.Redis != nil {
		if err := a.infra.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// Close releases caches, flushes error reports and closes the connections.
func (a *App) Close() error {
	if a.langCache != nil {
		a.langCache.Close()
	}
	if a.sessions != nil {
		a.sessions.Close()
	}
	if a.flush != nil {
		a.flush()
	}
	return a.infra.Close()
}
