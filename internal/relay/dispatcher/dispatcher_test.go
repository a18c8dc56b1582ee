package dispatcher

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang-signal-relay/internal/relay/config"
	"golang-signal-relay/pkg/logger"
)

type sentMessage struct {
	chatID   int64
	text     string
	keyboard bool
}

type fakeTelegram struct {
	sent            []sentMessage
	removedKeyboard []int
	answered        []string
}

func (f *fakeTelegram) SendMessage(chatID int64, text string) (int, error) {
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text})
	return len(f.sent), nil
}

func (f *fakeTelegram) SendMessageWithKeyboard(chatID int64, text string, _ tgbotapi.InlineKeyboardMarkup) (int, error) {
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text, keyboard: true})
	return len(f.sent), nil
}

func (f *fakeTelegram) RemoveKeyboard(_ int64, messageID int) error {
	f.removedKeyboard = append(f.removedKeyboard, messageID)
	return nil
}

func (f *fakeTelegram) AnswerCallback(id string) error {
	f.answered = append(f.answered, id)
	return nil
}

func (f *fakeTelegram) UpdatesChan(int, int, []string) tgbotapi.UpdatesChannel { return nil }
func (f *fakeTelegram) StopPolling()                                           {}

func newTestDispatcher(t *testing.T) (*Dispatcher, *fakeTelegram) {
	t.Helper()
	log, err := logger.New("error", "json")
	require.NoError(t, err)
	cfg := &config.Config{}
	cfg.Telegram.TargetGroupID = 100
	cfg.Telegram.UsersGroupID = 200
	tg := &fakeTelegram{}
	return New(cfg, log, tg), tg
}

func TestDispatchPrimaryAlwaysPosted(t *testing.T) {
	d, tg := newTestDispatcher(t)

	require.NoError(t, d.Dispatch(sampleResult(), false))

	require.Len(t, tg.sent, 1)
	assert.Equal(t, int64(100), tg.sent[0].chatID)
	assert.True(t, tg.sent[0].keyboard)
}

func TestDispatchActionableCrossPostsCondensed(t *testing.T) {
	d, tg := newTestDispatcher(t)

	require.NoError(t, d.Dispatch(sampleResult(), true))

	require.Len(t, tg.sent, 2)
	assert.Equal(t, int64(200), tg.sent[1].chatID)
	assert.False(t, tg.sent[1].keyboard)
	assert.Contains(t, tg.sent[1].text, "שם החברה: Teva")
}

func TestDispatchNotActionableSkipsSecondary(t *testing.T) {
	d, tg := newTestDispatcher(t)

	require.NoError(t, d.Dispatch(sampleResult(), false))

	assert.Len(t, tg.sent, 1)
}

func callbackQuery(action, messageText string) *tgbotapi.CallbackQuery {
	return &tgbotapi.CallbackQuery{
		ID:   "cb-1",
		Data: action,
		Message: &tgbotapi.Message{
			MessageID: 7,
			Chat:      &tgbotapi.Chat{ID: 100},
			Text:      messageText,
		},
	}
}

func TestHandleCallbackAcceptForwardsFields(t *testing.T) {
	d, tg := newTestDispatcher(t)
	posted := Compose(sampleResult())

	d.HandleCallback(callbackQuery(ActionAccept, posted))

	require.Len(t, tg.sent, 1)
	assert.Equal(t, int64(200), tg.sent[0].chatID)
	assert.Contains(t, tg.sent[0].text, "עליה\n")
	assert.Contains(t, tg.sent[0].text, "שם החברה: Teva")
	assert.Equal(t, []int{7}, tg.removedKeyboard)
	assert.Equal(t, []string{"cb-1"}, tg.answered)
}

func TestHandleCallbackCancelOnlyStripsKeyboard(t *testing.T) {
	d, tg := newTestDispatcher(t)

	d.HandleCallback(callbackQuery(ActionCancel, "whatever"))

	assert.Empty(t, tg.sent)
	assert.Equal(t, []int{7}, tg.removedKeyboard)
}

func TestHandleCallbackUnknownActionIgnored(t *testing.T) {
	d, tg := newTestDispatcher(t)

	d.HandleCallback(callbackQuery("vote_sideways", "whatever"))

	assert.Empty(t, tg.sent)
	assert.Empty(t, tg.removedKeyboard)
}

func TestHandleCallbackDoubleClickDoesNotPanic(t *testing.T) {
	d, tg := newTestDispatcher(t)
	posted := Compose(sampleResult())

	d.HandleCallback(callbackQuery(ActionReject, posted))
	d.HandleCallback(callbackQuery(ActionReject, posted))

	// the duplicate forward is an accepted risk, not a crash
	assert.Len(t, tg.sent, 2)
}
