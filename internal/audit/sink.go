// Package audit forwards start and publish notifications to the fixed
// record-keeping channel. Everything here is best-effort: failures are
// logged and swallowed so the sink can never block a user-visible
// result.
package audit

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yuin/goldmark"

	"github.com/zamaneghtesad/pressbot/internal/form"
)

// sendTimeout bounds a single audit delivery. Audit runs on its own
// context so a cancelled handler cannot strand a half-sent record.
const sendTimeout = 10 * time.Second

// ChannelSender delivers formatted messages to the audit channel. The
// Telegram client implements it.
type ChannelSender interface {
	SendChannelMessage(ctx context.Context, channelID int64, html string) error
	SendChannelDocument(ctx context.Context, channelID int64, path, htmlCaption string) error
}

// EventPublisher fans audit events out to a message broker. Optional;
// the MQTT publisher implements it.
type EventPublisher interface {
	Publish(ctx context.Context, event string, payload any) error
}

// Sink writes the audit trail: who started the bot and which artifacts
// were published. Implements [form.Sink].
type Sink struct {
	channelID int64
	sender    ChannelSender
	events    EventPublisher
	logger    *slog.Logger
}

// NewSink creates an audit sink. channelID zero disables channel
// forwarding; events may be nil.
func NewSink(channelID int64, sender ChannelSender, events EventPublisher, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{
		channelID: channelID,
		sender:    sender,
		events:    events,
		logger:    logger,
	}
}

// UserStarted records that a user opened the bot.
func (s *Sink) UserStarted(_ context.Context, user form.UserRef) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	if s.channelID != 0 {
		md := fmt.Sprintf("User started the bot:\n\n**%s** %s (`%d`)", user.FirstName, atUsername(user), user.ID)
		if err := s.sender.SendChannelMessage(ctx, s.channelID, htmlForChat(md)); err != nil {
			s.logger.Warn("audit start message failed", "user_id", user.ID, "error", err)
		}
	}

	s.publishEvent(ctx, "user.started", map[string]any{
		"user_id":    user.ID,
		"username":   user.Username,
		"first_name": user.FirstName,
	})
}

// PostPublished records a finished post: the artifact goes to the audit
// channel with the submitter's identity, and an event is emitted to the
// broker when one is configured.
func (s *Sink) PostPublished(_ context.Context, user form.UserRef, artifactPath string) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	if s.channelID != 0 {
		md := fmt.Sprintf("**%s** %s (`%d`) just finished their post.", user.FirstName, atUsername(user), user.ID)
		if err := s.sender.SendChannelDocument(ctx, s.channelID, artifactPath, htmlForChat(md)); err != nil {
			s.logger.Warn("audit publish record failed",
				"user_id", user.ID,
				"artifact", artifactPath,
				"error", err,
			)
		}
	}

	s.publishEvent(ctx, "post.published", map[string]any{
		"record_id": uuid.NewString(),
		"user_id":   user.ID,
		"username":  user.Username,
		"artifact":  artifactPath,
	})
}

func (s *Sink) publishEvent(ctx context.Context, event string, payload map[string]any) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event, payload); err != nil {
		s.logger.Warn("audit event publish failed", "event", event, "error", err)
	}
}

func atUsername(user form.UserRef) string {
	if user.Username == "" {
		return ""
	}
	return "@" + user.Username
}

// htmlForChat converts a small markdown snippet to the HTML subset chat
// captions accept. Block-level tags are stripped: only inline tags like
// <b>, <i>, and <code> survive delivery.
func htmlForChat(md string) string {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		// Fall back to the raw markdown; better an ugly record than none.
		return md
	}
	html := strings.NewReplacer(
		"<p>", "",
		"</p>", "\n",
		"<br>", "\n",
		"<br/>", "\n",
	).Replace(buf.String())
	return strings.TrimSpace(html)
}
