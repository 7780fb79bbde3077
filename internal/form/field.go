package form

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// handleFieldEvent runs the awaiting-input half of a field
// sub-conversation. The session entered Prompting in enterField; this
// consumes exactly one qualifying input (or a Cancel press), validates
// and commits it, and exits through refresh back to the idle menu.
func (c *Controller) handleFieldEvent(ctx context.Context, ev Event, sess *Session) {
	field, ok := c.schema.Field(sess.ActiveField)
	if !ok {
		// Schema no longer knows this field (stale persisted session).
		c.logger.Warn("dropping focus on unknown field",
			"conversation_id", ev.Conversation,
			"field", sess.ActiveField,
		)
		c.exitField(ctx, sess, false)
		return
	}

	switch ev.Kind {
	case EventAction:
		if verb, _ := splitAction(ev.Action); verb == ActionCancel {
			c.exitField(ctx, sess, false)
			return
		}
		// Menu presses are rejected while a prompt owns input focus.
		c.logger.Debug("action ignored while awaiting input",
			"conversation_id", ev.Conversation,
			"field", field.Name,
			"action", ev.Action,
		)

	case EventText:
		if field.Kind != InputText {
			c.wrongInput(ctx, ev.Conversation, field)
			return
		}
		// The raw reply is consumed into the form; delete it to keep
		// the chat showing only the menu message.
		_ = c.transport.DeleteMessage(ctx, ev.Conversation, ev.MessageID)
		c.commitField(ctx, ev.Conversation, func(s *Session) {
			s.Texts[field.Name] = ev.Text
		})

	case EventPhoto:
		if field.Kind != InputPhoto {
			c.wrongInput(ctx, ev.Conversation, field)
			return
		}
		c.processPhoto(ctx, ev, field, sess)
	}
}

// processPhoto validates an inbound photo, downloads the
// highest-resolution variant to durable storage, and commits the field.
// Any failure is reported to the user and aborts to idle with the
// session untouched.
func (c *Controller) processPhoto(ctx context.Context, ev Event, field FieldSpec, sess *Session) {
	best := largestPhoto(ev.Photos)
	if best == nil {
		c.failField(ctx, sess, "No photo found in that message.")
		return
	}

	dest := c.imagePath(ev.Conversation, field.Name)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		c.logger.Error("image dir create failed", "path", dest, "error", err)
		c.failField(ctx, sess, "Failed to store the photo, please try again.")
		return
	}
	if err := c.transport.DownloadPhoto(ctx, best.FileID, dest); err != nil {
		c.logger.Warn("photo download failed",
			"conversation_id", ev.Conversation,
			"field", field.Name,
			"error", err,
		)
		c.failField(ctx, sess, "Failed to download the photo, please try again.")
		return
	}

	_ = c.transport.DeleteMessage(ctx, ev.Conversation, ev.MessageID)
	fileID := best.FileID
	c.commitField(ctx, ev.Conversation, func(s *Session) {
		s.Images[field.Name] = ImageValue{FileID: fileID, LocalPath: dest}
	})
}

// commitField writes a validated value, releases input focus, discards
// the prompt message, and refreshes the displayed menu and preview.
func (c *Controller) commitField(ctx context.Context, conversation string, apply func(*Session)) {
	prev := c.store.Get(conversation)
	c.store.Mutate(conversation, func(s *Session) {
		apply(s)
		s.ActiveField = ""
		s.PromptMessage = 0
	})
	if prev.PromptMessage != 0 {
		_ = c.transport.DeleteMessage(ctx, conversation, prev.PromptMessage)
	}
	c.refresh(ctx, conversation, true)
}

// exitField terminates a sub-conversation without committing anything:
// the prompt message is discarded and the idle menu restored. Used for
// Cancel and for abort-on-failure; the field's prior value is untouched.
func (c *Controller) exitField(ctx context.Context, sess *Session, rerender bool) {
	if sess.PromptMessage != 0 {
		_ = c.transport.DeleteMessage(ctx, sess.Conversation, sess.PromptMessage)
	}
	c.store.Mutate(sess.Conversation, func(s *Session) {
		s.ActiveField = ""
		s.PromptMessage = 0
	})
	c.refresh(ctx, sess.Conversation, rerender)
}

// failField reports a processing failure and aborts to idle.
func (c *Controller) failField(ctx context.Context, sess *Session, msg string) {
	if _, err := c.transport.SendMessage(ctx, sess.Conversation, msg, nil); err != nil {
		c.logger.Debug("failure notice send failed", "conversation_id", sess.Conversation, "error", err)
	}
	c.exitField(ctx, sess, false)
}

// wrongInput tells the user what the open prompt expects. The
// sub-conversation stays in Awaiting Input; Cancel remains available.
func (c *Controller) wrongInput(ctx context.Context, conversation string, field FieldSpec) {
	want := "text message"
	if field.Kind == InputPhoto {
		want = "photo"
	}
	msg := fmt.Sprintf("%s expects a %s. Send one, or press Cancel.", field.Label, want)
	if _, err := c.transport.SendMessage(ctx, conversation, msg, nil); err != nil {
		c.logger.Debug("hint send failed", "conversation_id", conversation, "error", err)
	}
}

// largestPhoto selects the highest-resolution variant, or nil when the
// list is empty.
func largestPhoto(photos []PhotoSize) *PhotoSize {
	var best *PhotoSize
	for i := range photos {
		p := &photos[i]
		if best == nil || p.Width*p.Height > best.Width*best.Height {
			best = p
		}
	}
	return best
}
