// Command server runs the admissions record service: applicant CRUD,
// the document checklist, authentication, and the audit journal with
// its restore and hard-delete paths. Postgres, Redis, and Kafka are all
// optional; without them the server runs on in-memory stores, which is
// the local development setup.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	applicanthandler "admitdesk/internal/applicant/handler"
	applicantservice "admitdesk/internal/applicant/service"
	applicantmemory "admitdesk/internal/applicant/store/memory"
	applicantpg "admitdesk/internal/applicant/store/postgres"
	"admitdesk/internal/audit"
	"admitdesk/internal/audit/outbox"
	auditmemory "admitdesk/internal/audit/store/memory"
	auditpg "admitdesk/internal/audit/store/postgres"
	authhandler "admitdesk/internal/auth/handler"
	authmodels "admitdesk/internal/auth/models"
	authservice "admitdesk/internal/auth/service"
	"admitdesk/internal/auth/session"
	authmemory "admitdesk/internal/auth/store/memory"
	authpg "admitdesk/internal/auth/store/postgres"
	checklisthandler "admitdesk/internal/checklist/handler"
	checklistmodels "admitdesk/internal/checklist/models"
	checklistservice "admitdesk/internal/checklist/service"
	checklistmemory "admitdesk/internal/checklist/store/memory"
	checklistpg "admitdesk/internal/checklist/store/postgres"
	journalhandler "admitdesk/internal/journal/handler"
	journalservice "admitdesk/internal/journal/service"
	"admitdesk/internal/platform/config"
	"admitdesk/internal/platform/httpserver"
	"admitdesk/internal/platform/kafka"
	"admitdesk/internal/platform/logger"
	"admitdesk/internal/platform/metrics"
	"admitdesk/internal/platform/middleware"
	"admitdesk/internal/platform/redis"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	log := logger.New(cfg.LogFormat)
	slog.SetDefault(log)

	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var db *sql.DB
	if cfg.PostgresDSN != "" {
		var err error
		db, err = sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return err
		}
		log.Info("connected to postgres")
	} else {
		log.Warn("no postgres DSN configured, using in-memory stores")
	}

	// Stores. Each concern has a memory twin so the server runs without
	// infrastructure.
	var (
		journalStore   journalservice.Journal
		auditStore     audit.Store
		deletionReqs   applicantservice.DeletionRequests
		outboxSource   outbox.Source
		applicantStore applicantservice.Store
		journalTargets journalservice.Applicants
		checklistStore checklistservice.Store
		userStore      authservice.Users
		userBootstrap  func(context.Context, *authmodels.User) error
	)
	if db != nil {
		pgAudit := auditpg.New(db)
		journalStore, auditStore, deletionReqs, outboxSource = pgAudit, pgAudit, pgAudit, pgAudit

		pgApplicants := applicantpg.New(db)
		applicantStore, journalTargets = pgApplicants, pgApplicants

		checklistStore = checklistpg.New(db)

		pgUsers := authpg.NewUserStore(db)
		userStore = pgUsers
		userBootstrap = pgUsers.Create
	} else {
		memAudit := auditmemory.New()
		journalStore, auditStore, deletionReqs = memAudit, memAudit, memAudit

		memApplicants := applicantmemory.New()
		applicantStore, journalTargets = memApplicants, memApplicants

		memChecklists := checklistmemory.New()
		memChecklists.Seed(devChecklist())
		checklistStore = memChecklists

		memUsers := authmemory.NewUserStore()
		userStore = memUsers
		userBootstrap = memUsers.Create
	}

	redisClient, err := redis.New(cfg.RedisURL)
	if err != nil {
		return err
	}
	var sessions authservice.Sessions
	if redisClient != nil {
		defer redisClient.Close()
		sessions = session.NewRedisStore(redisClient, cfg.SessionTTL)
		log.Info("sessions backed by redis")
	} else {
		sessions = authmemory.NewSessionStore(cfg.SessionTTL)
	}

	writer, err := audit.NewWriter(auditStore, []byte(cfg.AuditHMACSecret), log, m)
	if err != nil {
		return err
	}

	checklists, err := checklistservice.New(checklistStore)
	if err != nil {
		return err
	}
	applicants, err := applicantservice.New(applicantStore, checklists, deletionReqs, writer, log,
		applicantservice.WithDB(db))
	if err != nil {
		return err
	}
	journal, err := journalservice.New(journalStore, journalTargets, writer, log,
		journalservice.WithDB(db), journalservice.WithMetrics(m))
	if err != nil {
		return err
	}
	auth, err := authservice.New(userStore, sessions, writer, []byte(cfg.JWTSigningKey), cfg.SessionTTL, log)
	if err != nil {
		return err
	}

	if cfg.AdminUsername != "" && cfg.AdminPassword != "" {
		if err := bootstrapAdmin(ctx, userBootstrap, cfg.AdminUsername, cfg.AdminPassword); err != nil {
			return err
		}
		log.Info("admin account ensured", "username", cfg.AdminUsername)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestMeta)
	r.Use(middleware.Instrument(m))
	r.Use(middleware.Recover(writer, log))
	r.Use(authhandler.Middleware(auth, log))

	r.Route("/api", func(r chi.Router) {
		authhandler.New(auth, log).Register(r)
		applicanthandler.New(applicants, log).Register(r)
		checklisthandler.New(checklists, log).Register(r)
		journalhandler.New(journal, log).Register(r)
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	server := httpserver.New(cfg.Addr, r)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("http server listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	// The outbox worker streams journal entries to Kafka. It only makes
	// sense with Postgres behind it; the memory setup has no outbox.
	publisher, err := kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	if err != nil {
		return err
	}
	if publisher != nil && outboxSource != nil {
		defer publisher.Close()
		if err := publisher.EnsureTopic(ctx); err != nil {
			return err
		}
		worker := outbox.NewWorker(outboxSource, publisher, log)
		g.Go(func() error {
			err := worker.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
		log.Info("audit outbox worker started", "topic", cfg.KafkaTopic)
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func bootstrapAdmin(ctx context.Context, create func(context.Context, *authmodels.User) error, username, password string) error {
	hash, err := authservice.HashPassword(password)
	if err != nil {
		return err
	}
	return create(ctx, &authmodels.User{
		Username:     username,
		PasswordHash: hash,
		FullName:     "Administrator",
		Roles:        []string{"admin"},
		Active:       true,
		CreatedAt:    time.Now().UTC(),
	})
}

// devChecklist is the seed used when running without Postgres; with a
// database the versions come from migrations.
func devChecklist() *checklistmodels.Version {
	return &checklistmodels.Version{
		Name:   "default",
		Active: true,
		Items: []checklistmodels.Item{
			{Code: "application_form", DisplayName: "Application form", OrderNo: 1, Required: true},
			{Code: "transcript", DisplayName: "Transcript", OrderNo: 2, Required: true},
			{Code: "degree", DisplayName: "Degree certificate", OrderNo: 3, Required: true},
			{Code: "photo", DisplayName: "ID photo", OrderNo: 4},
			{Code: "id_copy", DisplayName: "ID card copy", OrderNo: 5},
		},
	}
}
