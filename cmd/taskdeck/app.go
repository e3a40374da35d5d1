package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/gorm"

	"taskdeck/internal/cache"
	"taskdeck/internal/config"
	"taskdeck/internal/logger"
	"taskdeck/internal/metrics"
	"taskdeck/internal/notify"
	"taskdeck/internal/remote"
	"taskdeck/internal/repository"
	"taskdeck/internal/service"
)

// ledgerPruneAt is when reminder records older than the grace window are dropped.
const ledgerPruneAt = "03:30"

// app holds everything one process needs; adapters are attached by the run command.
type app struct {
	cfg      config.Config
	db       *gorm.DB
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	toasts   *notify.Center
	notifier *relayNotifier
	session  *service.Session
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	toasts := notify.NewCenter()
	toasts.OnPush(func(t notify.Toast) {
		m.Toast(string(t.Kind))
		logger.Info(context.Background(), "toast", "kind", t.Kind, "message", t.Message, "action", t.Action)
	})

	sessions := repository.NewSessionRepository(db)
	client := remote.New(cfg.APIBaseURL, sessions,
		remote.WithTimeout(cfg.HTTPTimeout),
		remote.WithMetrics(m),
	)

	c := cache.New()
	tasks := service.NewTaskService(client, c, toasts, m)
	notifier := &relayNotifier{}
	reminders := service.NewReminderService(repository.NewReminderRepository(db), notifier, toasts, m, cfg.ReminderGrace)

	session := service.NewSession(service.SessionOptions{
		ReminderInterval: cfg.ReminderInterval,
		RefreshInterval:  cfg.RefreshInterval,
		PruneAt:          ledgerPruneAt,
		Location:         time.Local,
	}, sessions, c, tasks, reminders, toasts)

	if cfg.Token != "" {
		if err := session.Login(ctx, cfg.Token); err != nil {
			return nil, err
		}
	}

	return &app{
		cfg:      cfg,
		db:       db,
		registry: registry,
		metrics:  m,
		toasts:   toasts,
		notifier: notifier,
		session:  session,
	}, nil
}

func (a *app) close() {
	if sqlDB, err := a.db.DB(); err == nil {
		sqlDB.Close()
	}
}

// relayNotifier forwards reminders to whichever system channel is attached.
// Until one is, reminders fall back to toasts.
type relayNotifier struct {
	mu     sync.RWMutex
	target notify.SystemNotifier
}

func (r *relayNotifier) attach(n notify.SystemNotifier) {
	r.mu.Lock()
	r.target = n
	r.mu.Unlock()
}

func (r *relayNotifier) NotifyReminder(ctx context.Context, rem notify.Reminder) error {
	r.mu.RLock()
	target := r.target
	r.mu.RUnlock()
	if target == nil {
		return notify.Disabled{}.NotifyReminder(ctx, rem)
	}
	return target.NotifyReminder(ctx, rem)
}
