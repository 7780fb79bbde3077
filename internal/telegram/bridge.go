package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/zamaneghtesad/pressbot/internal/audit"
	"github.com/zamaneghtesad/pressbot/internal/form"
)

// handleTimeout bounds how long a single inbound update may be
// processed (render invocation included).
const handleTimeout = 2 * time.Minute

// queueDepth is the per-conversation buffer. A user who outruns their
// own form this badly loses the overflow, with a warning logged.
const queueDepth = 16

// BridgeConfig holds the dependencies for a Bridge.
type BridgeConfig struct {
	Client      *Client
	Controller  *form.Controller
	Sink        *audit.Sink
	Logger      *slog.Logger
	PollTimeout int // getUpdates long-poll seconds
}

// Bridge receives Telegram updates, translates them into form events,
// and dispatches them through per-conversation queues so each
// conversation's events are handled one at a time, in arrival order.
// Different conversations proceed in parallel.
type Bridge struct {
	client      *Client
	controller  *form.Controller
	sink        *audit.Sink
	logger      *slog.Logger
	pollTimeout int

	mu     sync.Mutex
	queues map[int64]chan tgbotapi.Update
	wg     sync.WaitGroup
}

// NewBridge creates an update bridge.
func NewBridge(cfg BridgeConfig) *Bridge {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pollTimeout := cfg.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = 30
	}
	return &Bridge{
		client:      cfg.Client,
		controller:  cfg.Controller,
		sink:        cfg.Sink,
		logger:      logger,
		pollTimeout: pollTimeout,
		queues:      make(map[int64]chan tgbotapi.Update),
	}
}

// Start registers the command list and consumes updates until ctx is
// cancelled, then drains the per-conversation workers.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.client.registerCommands(); err != nil {
		// The bot works without the published command list.
		b.logger.Warn("command registration failed", "error", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.pollTimeout
	updates := b.client.bot.GetUpdatesChan(u)

	b.logger.Info("telegram bridge started")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("telegram bridge shutting down")
			b.client.bot.StopReceivingUpdates()
			b.closeQueues()
			b.wg.Wait()
			return nil
		case update, ok := <-updates:
			if !ok {
				b.closeQueues()
				b.wg.Wait()
				return fmt.Errorf("telegram update channel closed")
			}
			chat := updateChat(update)
			if chat == 0 {
				continue
			}
			b.dispatch(ctx, chat, update)
		}
	}
}

// dispatch enqueues an update on its conversation's queue, starting a
// worker on first contact.
func (b *Bridge) dispatch(ctx context.Context, chat int64, update tgbotapi.Update) {
	b.mu.Lock()
	q, ok := b.queues[chat]
	if !ok {
		q = make(chan tgbotapi.Update, queueDepth)
		b.queues[chat] = q
		b.wg.Add(1)
		go b.worker(ctx, chat, q)
	}
	b.mu.Unlock()

	select {
	case q <- update:
	default:
		b.logger.Warn("conversation queue full, dropping update",
			"conversation_id", ConversationID(chat),
		)
	}
}

// closeQueues closes every worker channel. Must only be called after
// the update loop has stopped enqueueing.
func (b *Bridge) closeQueues() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for chat, q := range b.queues {
		close(q)
		delete(b.queues, chat)
	}
}

// worker drains one conversation's queue, one update at a time.
func (b *Bridge) worker(ctx context.Context, chat int64, q <-chan tgbotapi.Update) {
	defer b.wg.Done()
	for update := range q {
		b.handleUpdate(ctx, chat, update)
	}
}

// handleUpdate translates one update and runs it through the form
// controller under a bounded context. Panics and errors stay inside
// this conversation; other conversations are unaffected.
func (b *Bridge) handleUpdate(ctx context.Context, chat int64, update tgbotapi.Update) {
	ctx, cancel := context.WithTimeout(ctx, handleTimeout)
	defer cancel()

	conversation := ConversationID(chat)

	switch {
	case update.CallbackQuery != nil:
		cb := update.CallbackQuery
		b.client.answerCallback(cb.ID)
		ev := form.Event{
			Conversation: conversation,
			Kind:         form.EventAction,
			Action:       cb.Data,
			From:         userRef(cb.From),
		}
		if cb.Message != nil {
			ev.MessageID = cb.Message.MessageID
		}
		b.controller.HandleEvent(ctx, ev)

	case update.Message != nil && update.Message.IsCommand():
		b.handleCommand(ctx, conversation, update.Message)

	case update.Message != nil && len(update.Message.Photo) > 0:
		b.controller.HandleEvent(ctx, form.Event{
			Conversation: conversation,
			Kind:         form.EventPhoto,
			MessageID:    update.Message.MessageID,
			Photos:       photoSizes(update.Message.Photo),
			From:         userRef(update.Message.From),
		})

	case update.Message != nil && update.Message.Text != "":
		b.controller.HandleEvent(ctx, form.Event{
			Conversation: conversation,
			Kind:         form.EventText,
			MessageID:    update.Message.MessageID,
			Text:         update.Message.Text,
			From:         userRef(update.Message.From),
		})

	default:
		b.logger.Debug("ignoring update without actionable content",
			"conversation_id", conversation,
		)
	}
}

// handleCommand runs the small fixed command surface.
func (b *Bridge) handleCommand(ctx context.Context, conversation string, msg *tgbotapi.Message) {
	user := userRef(msg.From)

	b.logger.Info("command received",
		"conversation_id", conversation,
		"command", msg.Command(),
		"user_id", user.ID,
	)

	switch msg.Command() {
	case "start":
		name := user.FirstName
		if name == "" {
			name = "there"
		}
		greeting := fmt.Sprintf("Hello %s, welcome to the bot! ❤️\nUse /create_post to build a newspaper post.", name)
		if _, err := b.client.SendMessage(ctx, conversation, greeting, nil); err != nil {
			b.logger.Error("greeting send failed", "conversation_id", conversation, "error", err)
			return
		}
		if b.sink != nil {
			b.sink.UserStarted(ctx, user)
		}

	case "create_post":
		if err := b.controller.StartPost(ctx, conversation, user); err != nil {
			b.logger.Error("create_post failed", "conversation_id", conversation, "error", err)
			if _, err := b.client.SendMessage(ctx, conversation, "Could not open the form, please try again.", nil); err != nil {
				b.logger.Debug("error notice send failed", "conversation_id", conversation, "error", err)
			}
		}

	case "clear":
		b.controller.Clear(ctx, conversation)
		if _, err := b.client.SendMessage(ctx, conversation, "Form cleared.", nil); err != nil {
			b.logger.Debug("clear notice send failed", "conversation_id", conversation, "error", err)
		}

	default:
		if _, err := b.client.SendMessage(ctx, conversation, "Send /start", nil); err != nil {
			b.logger.Debug("fallback send failed", "conversation_id", conversation, "error", err)
		}
	}
}

// updateChat extracts the chat ID an update belongs to, or zero when it
// has none.
func updateChat(update tgbotapi.Update) int64 {
	switch {
	case update.Message != nil && update.Message.Chat != nil:
		return update.Message.Chat.ID
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil && update.CallbackQuery.Message.Chat != nil:
		return update.CallbackQuery.Message.Chat.ID
	}
	return 0
}

func userRef(u *tgbotapi.User) form.UserRef {
	if u == nil {
		return form.UserRef{}
	}
	return form.UserRef{
		ID:        u.ID,
		Username:  u.UserName,
		FirstName: u.FirstName,
	}
}

func photoSizes(photos []tgbotapi.PhotoSize) []form.PhotoSize {
	sizes := make([]form.PhotoSize, 0, len(photos))
	for _, p := range photos {
		sizes = append(sizes, form.PhotoSize{
			FileID: p.FileID,
			Width:  p.Width,
			Height: p.Height,
		})
	}
	return sizes
}
