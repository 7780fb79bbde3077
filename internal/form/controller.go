package form

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// previewCaption is shown on the live preview/menu message.
const previewCaption = "Live preview"

// Config holds the dependencies for a Controller.
type Config struct {
	Schema    *Schema
	Store     *Store
	Transport Transport
	Renderer  Renderer
	Sink      Sink // optional
	Logger    *slog.Logger

	// PlaceholderImage is displayed before the first render.
	PlaceholderImage string
	// DataDir is the root for downloaded images and output artifacts.
	DataDir string
}

// Controller is the per-conversation dispatcher. It routes each inbound
// event either to the active field sub-conversation or to the idle menu
// handlers, and re-renders the displayed menu from the authoritative
// session state after every mutation.
//
// The transport bridge guarantees events for one conversation arrive
// one at a time, so handlers never race over ActiveField.
type Controller struct {
	schema      *Schema
	store       *Store
	transport   Transport
	renderer    Renderer
	sink        Sink
	logger      *slog.Logger
	placeholder string
	dataDir     string
}

// NewController creates a form controller.
func NewController(cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		schema:      cfg.Schema,
		store:       cfg.Store,
		transport:   cfg.Transport,
		renderer:    cfg.Renderer,
		sink:        cfg.Sink,
		logger:      logger,
		placeholder: cfg.PlaceholderImage,
		dataDir:     cfg.DataDir,
	}
}

// OutputPath returns the session-scoped artifact path renders write to.
func (c *Controller) OutputPath(conversation string) string {
	return filepath.Join(c.dataDir, "out", "post_"+conversation+".png")
}

// imagePath returns the durable local path for a downloaded photo field.
func (c *Controller) imagePath(conversation, field string) string {
	return filepath.Join(c.dataDir, "images", conversation+"_"+field+".jpg")
}

// HandleEvent processes one inbound interaction. All failures are
// handled here or below; nothing escapes to the event loop.
func (c *Controller) HandleEvent(ctx context.Context, ev Event) {
	sess := c.store.Get(ev.Conversation)

	if ev.From.ID != 0 && sess.User != ev.From {
		sess = c.store.Mutate(ev.Conversation, func(s *Session) {
			s.User = ev.From
		})
	}

	if sess.ActiveField != "" {
		c.handleFieldEvent(ctx, ev, sess)
		return
	}
	c.handleIdleEvent(ctx, ev, sess)
}

// handleIdleEvent dispatches menu actions while no field sub-conversation
// is in flight.
func (c *Controller) handleIdleEvent(ctx context.Context, ev Event, sess *Session) {
	if ev.Kind != EventAction {
		// Free-form input with no prompt open; nudge instead of guessing
		// which field it was meant for.
		if _, err := c.transport.SendMessage(ctx, ev.Conversation, "Use /create_post to start a post.", nil); err != nil {
			c.logger.Debug("nudge send failed", "conversation_id", ev.Conversation, "error", err)
		}
		return
	}

	verb, args := splitAction(ev.Action)
	switch verb {
	case actionField:
		if len(args) == 1 {
			c.enterField(ctx, ev.Conversation, args[0])
			return
		}
	case actionToggle:
		if len(args) == 1 {
			if _, ok := c.schema.Toggle(args[0]); ok {
				name := args[0]
				c.store.Mutate(ev.Conversation, func(s *Session) {
					s.Toggles[name] = !s.Toggles[name]
				})
				c.refresh(ctx, ev.Conversation, true)
				return
			}
		}
	case actionCounter:
		if len(args) == 2 {
			if spec, ok := c.schema.Counter(args[0]); ok {
				step := spec.Step
				if args[1] == "dec" {
					step = -step
				}
				c.store.Mutate(ev.Conversation, func(s *Session) {
					s.Counters[spec.Name] += step
				})
				c.refresh(ctx, ev.Conversation, true)
				return
			}
		}
	case ActionClear:
		c.Clear(ctx, ev.Conversation)
		return
	case ActionFinish:
		c.finish(ctx, ev.Conversation)
		return
	case ActionNoop:
		return
	case ActionCancel:
		// Stale cancel press after the sub-conversation already ended.
		return
	}

	c.logger.Warn("unknown menu action",
		"conversation_id", ev.Conversation,
		"action", ev.Action,
	)
}

// enterField begins the sub-conversation for the named field: sends the
// prompt, records input focus, and swaps the displayed menu for the
// Cancel control.
func (c *Controller) enterField(ctx context.Context, conversation, name string) {
	field, ok := c.schema.Field(name)
	if !ok {
		c.logger.Warn("enter unknown field", "conversation_id", conversation, "field", name)
		return
	}

	prompt, err := c.transport.SendMessage(ctx, conversation, field.Prompt, nil)
	if err != nil {
		c.logger.Error("prompt send failed",
			"conversation_id", conversation,
			"field", name,
			"error", err,
		)
		return
	}

	sess := c.store.Mutate(conversation, func(s *Session) {
		s.ActiveField = name
		s.PromptMessage = prompt.ID
	})

	if sess.MainMessage != 0 {
		if err := c.transport.EditMessageMenu(ctx, conversation, sess.MainMessage, CancelMenu()); err != nil {
			c.logger.Debug("cancel menu swap failed", "conversation_id", conversation, "error", err)
		}
	}
}

// refresh recomputes the menu from the session and edits the displayed
// message in place. When rerender is true the preview image is
// regenerated first; a render failure keeps the previous preview but
// the menu always reflects current state.
func (c *Controller) refresh(ctx context.Context, conversation string, rerender bool) {
	sess := c.store.Get(conversation)
	if sess.MainMessage == 0 {
		return
	}

	if rerender {
		out := c.OutputPath(conversation)
		if err := c.renderer.Render(ctx, sess.Snapshot(), out); err != nil {
			c.logger.Warn("preview render failed",
				"conversation_id", conversation,
				"error", err,
			)
		} else if err := c.transport.EditMessagePhoto(ctx, conversation, sess.MainMessage, out, previewCaption); err != nil {
			c.logger.Debug("preview update failed", "conversation_id", conversation, "error", err)
		}
	}

	menu := BuildMenu(c.schema, sess.Snapshot())
	if err := c.transport.EditMessageMenu(ctx, conversation, sess.MainMessage, menu); err != nil {
		c.logger.Debug("menu update failed", "conversation_id", conversation, "error", err)
	}
}

// StartPost displays a fresh form menu for the conversation, replacing
// any previous menu message. Field values are kept; an in-flight field
// prompt is abandoned.
func (c *Controller) StartPost(ctx context.Context, conversation string, user UserRef) error {
	sess := c.store.Get(conversation)

	if sess.PromptMessage != 0 {
		_ = c.transport.DeleteMessage(ctx, conversation, sess.PromptMessage)
	}
	if sess.MainMessage != 0 {
		_ = c.transport.DeleteMessage(ctx, conversation, sess.MainMessage)
	}

	menu := BuildMenu(c.schema, sess.Snapshot())
	ref, err := c.transport.SendPhoto(ctx, conversation, c.displayImage(conversation), previewCaption, &menu)
	if err != nil {
		return fmt.Errorf("send form menu: %w", err)
	}

	c.store.Mutate(conversation, func(s *Session) {
		s.MainMessage = ref.ID
		s.ActiveField = ""
		s.PromptMessage = 0
		if user.ID != 0 {
			s.User = user
		}
	})
	return nil
}

// displayImage returns the current preview artifact when one exists,
// falling back to the placeholder.
func (c *Controller) displayImage(conversation string) string {
	out := c.OutputPath(conversation)
	if _, err := os.Stat(out); err == nil {
		return out
	}
	return c.placeholder
}

// Clear resets all field values to schema defaults, removes derived
// artifacts from disk, and restores the displayed message to the
// placeholder. Clearing an already-cleared form lands in the same
// displayed state.
func (c *Controller) Clear(ctx context.Context, conversation string) {
	sess := c.store.Get(conversation)
	for _, img := range sess.Images {
		if img.LocalPath != "" {
			_ = os.Remove(img.LocalPath)
		}
	}
	_ = os.Remove(c.OutputPath(conversation))

	sess = c.store.Reset(conversation)
	if sess.MainMessage == 0 {
		return
	}
	if err := c.transport.EditMessagePhoto(ctx, conversation, sess.MainMessage, c.placeholder, previewCaption); err != nil {
		// "not modified" on a repeat clear is expected; nothing to do.
		c.logger.Debug("placeholder restore failed", "conversation_id", conversation, "error", err)
	}
	menu := BuildMenu(c.schema, sess.Snapshot())
	if err := c.transport.EditMessageMenu(ctx, conversation, sess.MainMessage, menu); err != nil {
		c.logger.Debug("menu update failed", "conversation_id", conversation, "error", err)
	}
}

// finish renders the final artifact from an immutable snapshot and
// delivers it to the user and the record-keeping sink. The session's
// field values are never cleared here; a failed render leaves
// everything intact so the user can retry.
func (c *Controller) finish(ctx context.Context, conversation string) {
	sess := c.store.Get(conversation)
	if sess.ActiveField != "" {
		// Guarded by dispatch already; never corrupt an in-flight field.
		return
	}

	out := c.OutputPath(conversation)
	if err := c.renderer.Render(ctx, sess.Snapshot(), out); err != nil {
		c.logger.Error("final render failed",
			"conversation_id", conversation,
			"error", err,
		)
		if _, err := c.transport.SendMessage(ctx, conversation, "Generation failed, please try again.", nil); err != nil {
			c.logger.Debug("failure notice send failed", "conversation_id", conversation, "error", err)
		}
		return
	}

	// The final document supersedes the menu message.
	if sess.MainMessage != 0 {
		_ = c.transport.DeleteMessage(ctx, conversation, sess.MainMessage)
		c.store.Mutate(conversation, func(s *Session) {
			s.MainMessage = 0
		})
	}

	if _, err := c.transport.SendDocument(ctx, conversation, out, "Here is your generated post."); err != nil {
		c.logger.Error("artifact delivery failed",
			"conversation_id", conversation,
			"error", err,
		)
		return
	}

	c.logger.Info("post published",
		"conversation_id", conversation,
		"user_id", sess.User.ID,
		"artifact", out,
	)

	if c.sink != nil {
		c.sink.PostPublished(ctx, sess.User, out)
	}
}
