// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func RegisterBotCommands(b *telebot.Bot, adminTelegramID int64, baseLogger *logrus.Entry) {
	startHelpLogger := baseLogger.WithField("handler_group", "start_help")

	b.Handle("/start", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startHelpLogger.WithField("command", "/start").WithField("sender_id", senderID)
		logCtx.Info("Processing /start command")

		if senderID == adminTelegramID {
			return c.Send("Hello, " + c.Sender().FirstName + "! Rejected replies will show up here. Use /help for the list of commands.")
		}
		logCtx.Info("User is not the admin")
		return c.Send("This bot only serves the question service administrator.")
	})

	b.Handle("/help", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startHelpLogger.WithField("command", "/help").WithField("sender_id", senderID)
		logCtx.Info("Processing /help command")

		if senderID != adminTelegramID {
			return c.Send("No commands are available to you.")
		}
		return c.Send(AdminHelp(), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	})
}

// AdminHelp lists the admin commands.
func AdminHelp() string {
	var helpText strings.Builder
	helpText.WriteString("Admin commands:\n\n")
	helpText.WriteString("`/cycle <CycleID>`\n - Show a cycle.\n\n")
	helpText.WriteString("`/activate <CycleID>`\n - Open a cycle now and send its question.\n\n")
	helpText.WriteString("`/close <CycleID>`\n - Stop accepting answers now.\n\n")
	helpText.WriteString("`/pause <CycleID> <YYYY-MM-DD>`\n - Hold automatic transitions until the date.\n\n")
	helpText.WriteString("`/resume <CycleID>`\n - Lift a pause.\n\n")
	helpText.WriteString("`/schedule <GroupID> <QuestionID>`\n - Send a question outside the weekly rhythm.\n\n")
	helpText.WriteString("`/help`\n - Show this message.")
	return helpText.String()
}
