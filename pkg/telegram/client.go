package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Client defines the Telegram operations the relay needs: plain sends,
// sends with an inline keyboard, stripping a keyboard from a posted
// message, answering callback queries, and the long-poll update stream.
type Client interface {
	SendMessage(chatID int64, text string) (int, error)
	SendMessageWithKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) (int, error)
	RemoveKeyboard(chatID int64, messageID int) error
	AnswerCallback(callbackID string) error
	UpdatesChan(offset int, timeout int, allowedUpdates []string) tgbotapi.UpdatesChannel
	StopPolling()
}

// client is an implementation of Client backed by the Bot API.
type client struct {
	bot *tgbotapi.BotAPI
}

// NewClient creates a new Telegram client.
func NewClient(botToken string) (Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, err
	}
	return &client{bot: bot}, nil
}

// SendMessage sends a plain text message and returns the posted message ID.
func (c *client) SendMessage(chatID int64, text string) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	sent, err := c.bot.Send(msg)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

// SendMessageWithKeyboard sends a text message with an inline keyboard
// attached and returns the posted message ID.
func (c *client) SendMessageWithKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = keyboard
	sent, err := c.bot.Send(msg)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

// RemoveKeyboard strips the inline keyboard from a previously sent message.
func (c *client) RemoveKeyboard(chatID int64, messageID int) error {
	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, tgbotapi.InlineKeyboardMarkup{
		InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{},
	})
	_, err := c.bot.Request(edit)
	return err
}

// AnswerCallback acknowledges a callback query so the client stops spinning.
func (c *client) AnswerCallback(callbackID string) error {
	_, err := c.bot.Request(tgbotapi.NewCallback(callbackID, ""))
	return err
}

// UpdatesChan opens the long-poll update stream.
func (c *client) UpdatesChan(offset int, timeout int, allowedUpdates []string) tgbotapi.UpdatesChannel {
	u := tgbotapi.NewUpdate(offset)
	u.Timeout = timeout
	u.AllowedUpdates = allowedUpdates
	return c.bot.GetUpdatesChan(u)
}

// StopPolling closes the update stream.
func (c *client) StopPolling() {
	c.bot.StopReceivingUpdates()
}
