package main

import (
	"context"
	"database/sql"
	"fmt"

	"group_question_service/internal/app"
	"group_question_service/internal/domain/reply"
	"group_question_service/internal/infra/audit"
	"group_question_service/internal/infra/config"
	idb "group_question_service/internal/infra/database"
	"group_question_service/internal/infra/logger"
	"group_question_service/internal/infra/mail"
	"group_question_service/internal/infra/scheduler"
	"group_question_service/internal/infra/token"
)

// services is the wired application.
type services struct {
	db        *sql.DB
	cycleRepo *idb.PostgresCycleRepository
	replies   *app.ReplyService
	cycles    *app.CycleService
	digests   *app.DigestService
	scheduler *scheduler.QuestionScheduler
	closers   []func() error
}

func (s *services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			logger.Log.WithError(err).Warn("Error during shutdown")
		}
	}
}

// buildServices connects to storage and wires the application. The alerter
// receives rejection notices.
func buildServices(ctx context.Context, cfg *config.AppConfig, alerter app.RejectionAlerter) (*services, error) {
	db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	s := &services{db: db, closers: []func() error{db.Close}}
	if err := idb.Migrate(ctx, db); err != nil {
		s.Close()
		return nil, err
	}
	logger.Log.Info("Database connection established, schema applied.")

	events, err := newEventPublisher(ctx, cfg, s)
	if err != nil {
		s.Close()
		return nil, err
	}

	signer, err := token.NewSigner(cfg.ReplyTokenSecret)
	if err != nil {
		s.Close()
		return nil, err
	}

	members := idb.NewPostgresMemberRepository(db)
	questions := idb.NewPostgresQuestionRepository(db)
	answers := idb.NewPostgresAnswerRepository(db)
	digestRepo := idb.NewPostgresDigestRepository(db)
	s.cycleRepo = idb.NewPostgresCycleRepository(db)

	sender := mail.NewLogSender(logger.Component("mail"))
	dispatcher := app.NewQuestionDispatcher(questions, members, signer, sender, cfg.ReplyDomain, logger.Component("outbound"))
	s.cycles = app.NewCycleService(s.cycleRepo, questions, dispatcher, cfg.AnswerWindow, cfg.DigestDelay, logger.Component("cycles"))
	s.digests = app.NewDigestService(s.cycleRepo, questions, answers, members, digestRepo, sender, s.cycles, logger.Component("digests"))

	appLogger := logger.Component("inbound")
	locator := app.NewRecordLocator(events, appLogger,
		app.NewTokenStrategy(signer, cfg.ReplyDomain, questions, s.cycleRepo),
		app.NewHeaderStrategy(questions, s.cycleRepo),
		app.NewSubjectStrategy(questions, s.cycleRepo),
	)
	s.replies = app.NewReplyService(
		app.NewIdentityResolver(members, appLogger),
		locator,
		app.NewContentExtractor(cfg.ReplyDelimiter),
		app.NewAdmissionController(members, s.cycleRepo, answers, appLogger),
		events,
		alerter,
		cfg.ReplyDomain,
		appLogger,
	)

	s.scheduler = scheduler.NewQuestionScheduler(s.cycles, s.digests, scheduler.Specs{
		Lifecycle: cfg.CronSpecLifecycle,
		Weekly:    cfg.CronSpecWeekly,
		Digest:    cfg.CronSpecDigest,
	}, logger.Component("scheduler"))
	return s, nil
}

func newEventPublisher(ctx context.Context, cfg *config.AppConfig, s *services) (reply.EventPublisher, error) {
	if cfg.RedisURL == "" {
		logger.Log.Info("REDIS_URL not set, audit events go to the log.")
		return audit.NewLogPublisher(logger.Component("audit")), nil
	}
	pub, err := audit.NewRedisStreamPublisherWithURL(cfg.RedisURL, cfg.AuditStream)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, pub.Close)
	if err := pub.Ping(ctx); err != nil {
		return nil, fmt.Errorf("could not reach redis: %w", err)
	}
	logger.Log.WithField("stream", cfg.AuditStream).Info("Audit events go to the Redis stream.")
	return pub, nil
}
