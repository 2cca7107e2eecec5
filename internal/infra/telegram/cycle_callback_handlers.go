package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"group_question_service/internal/app"
	"group_question_service/internal/domain/cycle"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const callbackPrefix = "cyc"

// cycleMarkup offers the overrides that make sense in the cycle's current state.
func cycleMarkup(c *cycle.Cycle) *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{}
	var buttons []telebot.Btn
	switch c.Status {
	case cycle.StatusScheduled:
		buttons = append(buttons, markup.Data("Activate now", callbackPrefix, "activate", strconv.FormatInt(c.ID, 10)))
	case cycle.StatusActive:
		buttons = append(buttons, markup.Data("Close now", callbackPrefix, "close", strconv.FormatInt(c.ID, 10)))
	}
	if c.PausedUntil.Valid {
		buttons = append(buttons, markup.Data("Resume", callbackPrefix, "resume", strconv.FormatInt(c.ID, 10)))
	}
	if len(buttons) > 0 {
		markup.Inline(markup.Row(buttons...))
	}
	return markup
}

// parseCycleCallback reads "<action>|<cycle id>" from the button payload.
func parseCycleCallback(data string) (string, int64, error) {
	action, idStr, ok := strings.Cut(data, "|")
	if !ok {
		return "", 0, fmt.Errorf("invalid callback data format: %s", data)
	}
	cycleID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("invalid cycle ID '%s' in callback: %w", idStr, err)
	}
	return action, cycleID, nil
}

// RegisterCycleCallbackHandlers handles the inline buttons under cycle messages.
func RegisterCycleCallbackHandlers(ctx context.Context, b *telebot.Bot, adminService *app.AdminService, baseLogger *logrus.Entry) {
	actions := map[string]cycleAction{
		"activate": adminService.ActivateCycle,
		"close":    adminService.CloseCycle,
		"resume":   adminService.ResumeCycle,
	}

	b.Handle(&telebot.Btn{Unique: callbackPrefix}, func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "cycle_callback",
			"sender_id": c.Sender().ID,
		})

		name, cycleID, err := parseCycleCallback(c.Callback().Data)
		if err != nil {
			c.Bot().OnError(err, c)
			return c.Respond(&telebot.CallbackResponse{Text: "Could not read the button."})
		}
		action, ok := actions[name]
		if !ok {
			c.Bot().OnError(fmt.Errorf("unhandled cycle action: %s", name), c)
			return c.Respond(&telebot.CallbackResponse{Text: "Unknown action."})
		}

		handlerLogger = handlerLogger.WithFields(logrus.Fields{"action": name, "cycle_id": cycleID})
		updated, err := action(ctx, c.Sender().ID, cycleID)
		if err != nil {
			return c.Respond(&telebot.CallbackResponse{Text: describeAdminError(handlerLogger, cycleID, err)})
		}
		handlerLogger.WithField("status", updated.Status).Info("Cycle override applied")
		if err := c.Edit(FormatCycle(updated), cycleMarkup(updated)); err != nil {
			handlerLogger.WithError(err).Warn("Failed to refresh cycle message")
		}
		return c.Respond(&telebot.CallbackResponse{Text: "Done."})
	})
}
