package telegram

import (
	"fmt"
	"unicode/utf16"

	"gopkg.in/telebot.v3"
)

// maxMessageLength is Telegram's limit for one text message, counted in UTF-16 code units.
const maxMessageLength = 4096

// ChatSender delivers text to a chat.
type ChatSender interface {
	SendMessage(chatID int64, text string, options *telebot.SendOptions) error
}

// BotSender sends through a telebot.Bot. Texts over the message limit are cut
// and end with an ellipsis instead of being refused by the API.
type BotSender struct {
	bot *telebot.Bot
}

func NewBotSender(b *telebot.Bot) *BotSender {
	return &BotSender{bot: b}
}

func (s *BotSender) SendMessage(chatID int64, text string, options *telebot.SendOptions) error {
	if options == nil {
		options = &telebot.SendOptions{}
	}
	if _, err := s.bot.Send(telebot.ChatID(chatID), truncateMessage(text, maxMessageLength), options); err != nil {
		return fmt.Errorf("sending to chat %d: %w", chatID, err)
	}
	return nil
}

func utf16Len(r rune) int {
	if n := utf16.RuneLen(r); n > 0 {
		return n
	}
	return 1
}

func truncateMessage(text string, limit int) string {
	total := 0
	for _, r := range text {
		total += utf16Len(r)
	}
	if total <= limit {
		return text
	}

	used := 0
	for i, r := range text {
		n := utf16Len(r)
		if used+n > limit-1 {
			return text[:i] + "…"
		}
		used += n
	}
	return text
}
