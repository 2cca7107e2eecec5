package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"group_question_service/internal/app"
	"group_question_service/internal/domain/cycle"
	idb "group_question_service/internal/infra/database"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const (
	msgUnauthorized = "Error: you are not allowed to run this command."
	pauseDateLayout = "2006-01-02"
)

// cycleAction is an admin command that takes a cycle id and returns the updated cycle.
type cycleAction func(ctx context.Context, adminID, cycleID int64) (*cycle.Cycle, error)

// RegisterAdminHandlers registers the cycle override commands.
func RegisterAdminHandlers(ctx context.Context, b *telebot.Bot, adminService *app.AdminService, adminTelegramID int64, baseLogger *logrus.Entry) {
	register := func(command, usage string, action cycleAction) {
		b.Handle(command, func(c telebot.Context) error {
			handlerLogger := baseLogger.WithFields(logrus.Fields{
				"handler":   command,
				"sender_id": c.Sender().ID,
			})
			handlerLogger.Info("Command received")

			if c.Sender().ID != adminTelegramID {
				handlerLogger.Warn("Unauthorized access attempt")
				return c.Send(msgUnauthorized)
			}

			args := c.Args()
			if len(args) != 1 {
				return c.Send("Invalid command format. Use: " + usage)
			}
			cycleID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				handlerLogger.WithField("arg", args[0]).Warn("Invalid cycle ID format")
				return c.Send("Error: cycle ID must be a number.")
			}
			handlerLogger = handlerLogger.WithField("cycle_id", cycleID)

			updated, err := action(ctx, c.Sender().ID, cycleID)
			if err != nil {
				return c.Send(describeAdminError(handlerLogger, cycleID, err))
			}
			handlerLogger.WithField("status", updated.Status).Info("Command handled")
			return c.Send(FormatCycle(updated), cycleMarkup(updated))
		})
	}

	register("/cycle", "/cycle <CycleID>", adminService.GetCycle)
	register("/activate", "/activate <CycleID>", adminService.ActivateCycle)
	register("/close", "/close <CycleID>", adminService.CloseCycle)
	register("/resume", "/resume <CycleID>", adminService.ResumeCycle)

	b.Handle("/pause", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/pause",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")

		if c.Sender().ID != adminTelegramID {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send(msgUnauthorized)
		}

		args := c.Args()
		// Expected format: /pause <CycleID> <YYYY-MM-DD>
		if len(args) != 2 {
			return c.Send("Invalid command format. Use: /pause <CycleID> <YYYY-MM-DD>")
		}
		cycleID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return c.Send("Error: cycle ID must be a number.")
		}
		until, err := time.ParseInLocation(pauseDateLayout, args[1], time.Local)
		if err != nil {
			handlerLogger.WithField("arg", args[1]).Warn("Invalid pause date")
			return c.Send("Error: the date must look like 2006-01-02.")
		}
		handlerLogger = handlerLogger.WithFields(logrus.Fields{"cycle_id": cycleID, "until": args[1]})

		updated, err := adminService.PauseCycle(ctx, c.Sender().ID, cycleID, until)
		if err != nil {
			return c.Send(describeAdminError(handlerLogger, cycleID, err))
		}
		handlerLogger.Info("Cycle paused")
		return c.Send(FormatCycle(updated), cycleMarkup(updated))
	})

	b.Handle("/schedule", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/schedule",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")

		if c.Sender().ID != adminTelegramID {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send(msgUnauthorized)
		}

		args := c.Args()
		// Expected format: /schedule <GroupID> <QuestionID>
		if len(args) != 2 {
			return c.Send("Invalid command format. Use: /schedule <GroupID> <QuestionID>")
		}
		groupID, errGroup := strconv.ParseInt(args[0], 10, 64)
		questionID, errQuestion := strconv.ParseInt(args[1], 10, 64)
		if errGroup != nil || errQuestion != nil {
			return c.Send("Error: group and question IDs must be numbers.")
		}
		handlerLogger = handlerLogger.WithFields(logrus.Fields{"group_id": groupID, "question_id": questionID})

		created, err := adminService.ScheduleCycle(ctx, c.Sender().ID, groupID, questionID)
		if err != nil {
			switch {
			case errors.Is(err, idb.ErrGroupNotFound):
				return c.Send(fmt.Sprintf("Group %d not found.", groupID))
			case errors.Is(err, idb.ErrQuestionNotFound):
				return c.Send(fmt.Sprintf("Question %d not found.", questionID))
			}
			return c.Send(describeAdminError(handlerLogger, 0, err))
		}
		handlerLogger.WithField("cycle_id", created.ID).Info("Manual cycle scheduled")
		return c.Send(FormatCycle(created), cycleMarkup(created))
	})
}

func describeAdminError(log *logrus.Entry, cycleID int64, err error) string {
	log = log.WithError(err)
	switch {
	case errors.Is(err, app.ErrAdminNotAuthorized):
		log.Warn("Admin not authorized (service level)")
		return msgUnauthorized
	case errors.Is(err, idb.ErrCycleNotFound):
		log.Warn("Cycle not found")
		return fmt.Sprintf("Cycle %d not found.", cycleID)
	case errors.Is(err, cycle.ErrInvalidTransition), errors.Is(err, cycle.ErrInvalidPause):
		log.Warn("Cycle override refused")
		return fmt.Sprintf("Not possible for cycle %d: %s", cycleID, err.Error())
	default:
		log.Error("Admin command failed")
		return fmt.Sprintf("An error occurred: %s", err.Error())
	}
}

// FormatCycle renders a cycle for the admin chat.
func FormatCycle(c *cycle.Cycle) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Cycle %d (%s)\n", c.ID, c.Status)
	fmt.Fprintf(&b, "Group: %d, question: %d\n", c.GroupID, c.QuestionID)
	if c.QuestionRecordID.Valid {
		fmt.Fprintf(&b, "Question record: %d\n", c.QuestionRecordID.Int64)
	}
	fmt.Fprintf(&b, "Start: %s\n", c.StartDate.Format(time.DateTime))
	fmt.Fprintf(&b, "End: %s\n", c.EndDate.Format(time.DateTime))
	fmt.Fprintf(&b, "Digest: %s", c.DigestDate.Format(time.DateTime))
	if c.PausedUntil.Valid {
		fmt.Fprintf(&b, "\nPaused until: %s", c.PausedUntil.Time.Format(time.DateTime))
	}
	if c.Manual {
		b.WriteString("\nManual")
	}
	return b.String()
}
