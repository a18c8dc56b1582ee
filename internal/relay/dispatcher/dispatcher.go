// Package dispatcher composes the outbound message, posts it with the
// accept/reject/cancel controls, conditionally cross-posts a condensed
// verdict, and handles the operator's button response.
package dispatcher

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"golang-signal-relay/internal/relay/config"
	"golang-signal-relay/pkg/logger"
	"golang-signal-relay/pkg/telegram"
)

// Callback identifiers on the inline keyboard.
const (
	ActionAccept = "vote_up"
	ActionReject = "vote_down"
	ActionCancel = "vote_cancel"
)

// Decision labels forwarded to the users group.
var actionLabels = map[string]string{
	ActionAccept: "עליה",
	ActionReject: "ירידה",
}

// Dispatcher posts pipeline results and routes button clicks.
type Dispatcher struct {
	cfg    *config.Config
	logger *logger.Logger
	tg     telegram.Client
}

// New creates a new Dispatcher.
func New(cfg *config.Config, log *logger.Logger, tg telegram.Client) *Dispatcher {
	return &Dispatcher{cfg: cfg, logger: log, tg: tg}
}

func voteKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("עליה", ActionAccept),
			tgbotapi.NewInlineKeyboardButtonData("ירידה", ActionReject),
			tgbotapi.NewInlineKeyboardButtonData("ביטול", ActionCancel),
		),
	)
}

// Dispatch sends the composed message to the primary destination with the
// vote keyboard, and, when the verdict is actionable and a secondary
// destination is configured, cross-posts the condensed verdict there.
func (d *Dispatcher) Dispatch(r *Result, actionable bool) error {
	text := Compose(r)

	chunks := telegram.SplitMessage(text)
	for i, chunk := range chunks {
		var err error
		if i == 0 {
			_, err = d.tg.SendMessageWithKeyboard(d.cfg.Telegram.TargetGroupID, chunk, voteKeyboard())
		} else {
			_, err = d.tg.SendMessage(d.cfg.Telegram.TargetGroupID, chunk)
		}
		if err != nil {
			d.logger.Error("failed to send to primary destination", logger.ErrorField(err))
			return err
		}
	}

	if actionable && d.cfg.Telegram.UsersGroupID != 0 && r.Verdict != nil {
		condensed := ComposeCondensed(r.Verdict, r.Plan)
		if _, err := d.tg.SendMessage(d.cfg.Telegram.UsersGroupID, condensed); err != nil {
			d.logger.Error("failed to send condensed verdict", logger.ErrorField(err))
		}
	}

	d.logger.Info("dispatched signal",
		logger.IntField("chunks", len(chunks)),
		logger.Field("actionable", actionable),
	)
	return nil
}

// HandleCallback processes one button click. Fields are re-derived from
// the posted message text, not from in-memory state; a double-click race
// before the keyboard strip may duplicate a forward and that is accepted.
func (d *Dispatcher) HandleCallback(query *tgbotapi.CallbackQuery) {
	if query == nil || query.Message == nil {
		return
	}

	if err := d.tg.AnswerCallback(query.ID); err != nil {
		d.logger.Warn("failed to answer callback", logger.ErrorField(err))
	}

	chatID := query.Message.Chat.ID
	messageID := query.Message.MessageID
	action := query.Data

	if action == ActionCancel {
		if err := d.tg.RemoveKeyboard(chatID, messageID); err != nil {
			d.logger.Warn("failed to remove keyboard", logger.ErrorField(err))
		}
		return
	}

	label, ok := actionLabels[action]
	if !ok {
		d.logger.Warn("ignoring unknown callback action", logger.StringField("action", action))
		return
	}

	originText := query.Message.Text
	if originText == "" {
		originText = query.Message.Caption
	}

	toSend := label
	if fields := ParseFields(originText); fields != "" {
		toSend = label + "\n" + fields
	}

	if d.cfg.Telegram.UsersGroupID != 0 {
		if _, err := d.tg.SendMessage(d.cfg.Telegram.UsersGroupID, toSend); err != nil {
			d.logger.Error("failed to forward decision", logger.ErrorField(err))
		}
	}

	if err := d.tg.RemoveKeyboard(chatID, messageID); err != nil {
		d.logger.Warn("failed to remove keyboard", logger.ErrorField(err))
	}
}
