// Package listener runs the long-poll receive loop against Telegram and
// hands complete channel posts to the pipeline over a bounded queue. The
// poll worker never blocks on pipeline work; the pipeline never blocks the
// poll worker.
package listener

import (
	"context"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"golang-signal-relay/internal/relay/config"
	"golang-signal-relay/internal/relay/dispatcher"
	"golang-signal-relay/internal/relay/dto"
	"golang-signal-relay/internal/relay/service"
	"golang-signal-relay/pkg/logger"
	"golang-signal-relay/pkg/telegram"
	"golang-signal-relay/pkg/utils"
)

var allowedUpdates = []string{"channel_post", "callback_query"}

// Listener couples the poll loop with the pipeline workers.
type Listener struct {
	cfg        *config.Config
	logger     *logger.Logger
	tg         telegram.Client
	pipeline   *service.Pipeline
	dispatcher *dispatcher.Dispatcher
	queue      chan *dto.ChannelPost
	stopChan   chan struct{}
	wg         sync.WaitGroup
}

// New creates a new Listener.
func New(
	cfg *config.Config,
	log *logger.Logger,
	tg telegram.Client,
	pipeline *service.Pipeline,
	disp *dispatcher.Dispatcher,
) *Listener {
	return &Listener{
		cfg:        cfg,
		logger:     log,
		tg:         tg,
		pipeline:   pipeline,
		dispatcher: disp,
		queue:      make(chan *dto.ChannelPost, cfg.Pipeline.QueueSize),
		stopChan:   make(chan struct{}),
	}
}

// Start launches the poll worker and the pipeline drain worker.
func (l *Listener) Start(ctx context.Context) {
	l.wg.Add(2)
	utils.GoSafe(func() {
		defer l.wg.Done()
		l.pollLoop(ctx)
	})
	utils.GoSafe(func() {
		defer l.wg.Done()
		l.drainLoop(ctx)
	})
	l.logger.Info("listener started",
		logger.Int64Field("source_channel", l.cfg.Telegram.SourceChannelID),
		logger.IntField("queue_size", l.cfg.Pipeline.QueueSize),
	)
}

// Stop shuts down polling and waits for the workers.
func (l *Listener) Stop() {
	close(l.stopChan)
	l.tg.StopPolling()
	l.wg.Wait()
	l.logger.Info("listener stopped")
}

// pollLoop runs polling sessions forever. A session ending for any reason
// other than shutdown is logged and retried after the configured delay;
// this restart loop is the only top-level fault tolerance.
func (l *Listener) pollLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.stopChan:
			return
		default:
		}

		l.logger.Info("telegram polling starting")
		l.pollOnce(ctx)

		select {
		case <-ctx.Done():
			return
		case <-l.stopChan:
			return
		case <-time.After(l.cfg.Telegram.RetryDelay):
			l.logger.Warn("telegram polling ended, restarting",
				logger.DurationField("retry_delay", l.cfg.Telegram.RetryDelay))
		}
	}
}

// pollOnce consumes one update stream until it closes.
func (l *Listener) pollOnce(ctx context.Context) {
	updates := l.tg.UpdatesChan(0, l.cfg.Telegram.PollTimeout, allowedUpdates)
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.stopChan:
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			l.handleUpdate(update)
		}
	}
}

func (l *Listener) handleUpdate(update tgbotapi.Update) {
	switch {
	case update.ChannelPost != nil:
		l.enqueuePost(update.ChannelPost)
	case update.CallbackQuery != nil:
		query := update.CallbackQuery
		utils.GoSafe(func() { l.dispatcher.HandleCallback(query) })
	}
}

// enqueuePost converts the post and enqueues it without ever blocking the
// poll worker; on a full queue the post is dropped and logged.
func (l *Listener) enqueuePost(msg *tgbotapi.Message) {
	if msg.Chat == nil || msg.Chat.ID != l.cfg.Telegram.SourceChannelID {
		return
	}

	text := msg.Text
	entities := msg.Entities
	if text == "" {
		text = msg.Caption
		entities = msg.CaptionEntities
	}
	if text == "" {
		l.logger.Debug("ignoring empty channel post", logger.IntField("message_id", msg.MessageID))
		return
	}

	post := &dto.ChannelPost{
		ChatID:     msg.Chat.ID,
		MessageID:  msg.MessageID,
		Text:       text,
		Entities:   entities,
		ReceivedAt: time.Unix(int64(msg.Date), 0),
	}

	select {
	case l.queue <- post:
	default:
		l.logger.Error("pipeline queue full, dropping post",
			logger.IntField("message_id", msg.MessageID))
	}
}

// drainLoop extracts posts in arrival order, then runs the rest of each
// pipeline concurrently. Completion order across posts is unordered.
func (l *Listener) drainLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.stopChan:
			return
		case post := <-l.queue:
			signal := l.pipeline.ExtractSignal(post)
			utils.GoSafe(func() {
				l.pipeline.ProcessSignal(ctx, post, signal)
			})
		}
	}
}
