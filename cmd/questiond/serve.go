package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"group_question_service/internal/app"
	"group_question_service/internal/infra/httpapi"
	"group_question_service/internal/infra/logger"
	"group_question_service/internal/infra/telegram"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/telebot.v3"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the scheduler and the admin bot",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()
		return serve(ctx)
	},
}

func serve(ctx context.Context) error {
	log := logger.Log.WithField("component", "main")
	log.WithFields(logrus.Fields{
		"environment": cfg.Environment,
		"http_port":   cfg.HTTPPort,
		"telegram":    cfg.TelegramEnabled(),
	}).Info("Group question service starting...")

	var bot *telebot.Bot
	var notifier *telegram.RejectionNotifier
	var alerter app.RejectionAlerter = telegram.NoopNotifier{}
	if cfg.TelegramEnabled() {
		var err error
		bot, err = telebot.NewBot(telebot.Settings{
			Token:  cfg.TelegramToken,
			Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
			OnError: func(err error, c telebot.Context) { // Global error handler
				entry := logger.Log.WithField("component", "telebot").WithError(err)
				if c != nil && c.Sender() != nil && c.Chat() != nil {
					entry = entry.WithFields(logrus.Fields{"sender_id": c.Sender().ID, "chat_id": c.Chat().ID})
				}
				entry.Error("Telegram handler error")
			},
		})
		if err != nil {
			return err
		}
		notifier = telegram.NewRejectionNotifier(telegram.NewBotSender(bot), cfg.AdminTelegramID, logger.Component("telegram"))
		alerter = notifier
	} else {
		log.Info("TELEGRAM_TOKEN or ADMIN_TELEGRAM_ID not set, admin bot disabled.")
	}

	svc, err := buildServices(ctx, cfg, alerter)
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := svc.scheduler.Start(); err != nil {
		return err
	}
	defer svc.scheduler.Stop()

	server := httpapi.NewServer(svc.replies, svc.db, logger.Component("http"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("addr", cfg.HTTPAddr()).Info("HTTP server listening")
		if err := server.Start(cfg.HTTPAddr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if bot != nil {
		admin := app.NewAdminService(svc.cycles, svc.cycleRepo, cfg.AdminTelegramID)
		botLogger := logger.Component("telegram")
		telegram.RegisterBotCommands(bot, cfg.AdminTelegramID, botLogger)
		telegram.RegisterAdminHandlers(gctx, bot, admin, cfg.AdminTelegramID, botLogger)
		telegram.RegisterCycleCallbackHandlers(gctx, bot, admin, botLogger)

		g.Go(func() error {
			notifier.Run(gctx)
			return nil
		})
		g.Go(func() error {
			bot.Start() // blocks until Stop
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			bot.Stop()
			return nil
		})
	}

	err = g.Wait()
	log.Info("Shutting down application...")
	return err
}
