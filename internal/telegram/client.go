// Package telegram adapts the Telegram Bot API to the form engine's
// transport boundary and runs the inbound update loop.
package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/zamaneghtesad/pressbot/internal/form"
)

// Client wraps the Bot API connection and implements [form.Transport].
// Conversation IDs are the decimal chat ID; the bridge produces them
// and the client maps back.
//
// The underlying library does its own HTTP round-trips without context
// support; per-call contexts here bound only the file downloads we
// perform ourselves.
type Client struct {
	bot    *tgbotapi.BotAPI
	http   *http.Client
	logger *slog.Logger
}

// NewClient authenticates against the Bot API.
func NewClient(token string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	logger.Info("telegram connected", "username", bot.Self.UserName)
	return &Client{
		bot:    bot,
		http:   &http.Client{Timeout: 60 * time.Second},
		logger: logger,
	}, nil
}

// Username returns the bot's own account name.
func (c *Client) Username() string {
	return c.bot.Self.UserName
}

// chatID parses a conversation ID back to a Telegram chat ID.
func chatID(conversation string) (int64, error) {
	id, err := strconv.ParseInt(conversation, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad conversation id %q: %w", conversation, err)
	}
	return id, nil
}

// ConversationID formats a chat ID as a conversation ID.
func ConversationID(chat int64) string {
	return strconv.FormatInt(chat, 10)
}

// markup converts a menu descriptor to an inline keyboard.
func markup(menu form.Menu) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(menu.Rows))
	for _, row := range menu.Rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Action))
		}
		rows = append(rows, buttons)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// SendMessage sends a plain text message, optionally with a menu.
func (c *Client) SendMessage(ctx context.Context, conversation, text string, menu *form.Menu) (form.MessageRef, error) {
	id, err := chatID(conversation)
	if err != nil {
		return form.MessageRef{}, err
	}
	msg := tgbotapi.NewMessage(id, text)
	if menu != nil {
		msg.ReplyMarkup = markup(*menu)
	}
	sent, err := c.bot.Send(msg)
	if err != nil {
		return form.MessageRef{}, fmt.Errorf("send message: %w", err)
	}
	return form.MessageRef{ID: sent.MessageID}, nil
}

// SendPhoto sends a photo from a local path with a caption and menu.
func (c *Client) SendPhoto(ctx context.Context, conversation, path, caption string, menu *form.Menu) (form.MessageRef, error) {
	id, err := chatID(conversation)
	if err != nil {
		return form.MessageRef{}, err
	}
	msg := tgbotapi.NewPhoto(id, tgbotapi.FilePath(path))
	msg.Caption = caption
	if menu != nil {
		msg.ReplyMarkup = markup(*menu)
	}
	sent, err := c.bot.Send(msg)
	if err != nil {
		return form.MessageRef{}, fmt.Errorf("send photo: %w", err)
	}
	return form.MessageRef{ID: sent.MessageID}, nil
}

// SendDocument sends a local file as a document.
func (c *Client) SendDocument(ctx context.Context, conversation, path, caption string) (form.MessageRef, error) {
	id, err := chatID(conversation)
	if err != nil {
		return form.MessageRef{}, err
	}
	msg := tgbotapi.NewDocument(id, tgbotapi.FilePath(path))
	msg.Caption = caption
	sent, err := c.bot.Send(msg)
	if err != nil {
		return form.MessageRef{}, fmt.Errorf("send document: %w", err)
	}
	return form.MessageRef{ID: sent.MessageID}, nil
}

// EditMessagePhoto replaces a message's photo and caption in place.
func (c *Client) EditMessagePhoto(ctx context.Context, conversation string, messageID int, path, caption string) error {
	id, err := chatID(conversation)
	if err != nil {
		return err
	}
	media := tgbotapi.NewInputMediaPhoto(tgbotapi.FilePath(path))
	media.Caption = caption
	edit := tgbotapi.EditMessageMediaConfig{
		BaseEdit: tgbotapi.BaseEdit{ChatID: id, MessageID: messageID},
		Media:    media,
	}
	if _, err := c.bot.Request(edit); err != nil {
		return fmt.Errorf("edit message media: %w", err)
	}
	return nil
}

// EditMessageMenu replaces a message's inline keyboard in place.
func (c *Client) EditMessageMenu(ctx context.Context, conversation string, messageID int, menu form.Menu) error {
	id, err := chatID(conversation)
	if err != nil {
		return err
	}
	edit := tgbotapi.NewEditMessageReplyMarkup(id, messageID, markup(menu))
	if _, err := c.bot.Request(edit); err != nil {
		return fmt.Errorf("edit message markup: %w", err)
	}
	return nil
}

// DeleteMessage removes a message. An already-deleted message comes
// back as an API error; callers treat it as best-effort.
func (c *Client) DeleteMessage(ctx context.Context, conversation string, messageID int) error {
	id, err := chatID(conversation)
	if err != nil {
		return err
	}
	if _, err := c.bot.Request(tgbotapi.NewDeleteMessage(id, messageID)); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

// DownloadPhoto resolves a file handle to its CDN URL and writes the
// bytes to destPath.
func (c *Client) DownloadPhoto(ctx context.Context, fileID, destPath string) error {
	file, err := c.bot.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return fmt.Errorf("resolve file %s: %w", fileID, err)
	}

	url := file.Link(c.bot.Token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build download request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download file: unexpected status %s", resp.Status)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", destPath, err)
	}
	defer out.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("write %s: %w", destPath, err)
	}
	return nil
}

// SendChannelMessage sends an HTML-formatted message to a channel.
func (c *Client) SendChannelMessage(ctx context.Context, channelID int64, html string) error {
	msg := tgbotapi.NewMessage(channelID, html)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := c.bot.Send(msg); err != nil {
		return fmt.Errorf("send channel message: %w", err)
	}
	return nil
}

// SendChannelDocument sends a local file to a channel with an
// HTML-formatted caption.
func (c *Client) SendChannelDocument(ctx context.Context, channelID int64, path, htmlCaption string) error {
	msg := tgbotapi.NewDocument(channelID, tgbotapi.FilePath(path))
	msg.Caption = htmlCaption
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := c.bot.Send(msg); err != nil {
		return fmt.Errorf("send channel document: %w", err)
	}
	return nil
}

// answerCallback acknowledges a button press so the client stops
// showing its progress spinner.
func (c *Client) answerCallback(id string) {
	if _, err := c.bot.Request(tgbotapi.NewCallback(id, "")); err != nil {
		c.logger.Debug("callback answer failed", "error", err)
	}
}

// registerCommands publishes the bot's command list.
func (c *Client) registerCommands() error {
	cmd := tgbotapi.NewSetMyCommands(
		tgbotapi.BotCommand{Command: "start", Description: "Start the bot"},
		tgbotapi.BotCommand{Command: "create_post", Description: "Create a newspaper post"},
		tgbotapi.BotCommand{Command: "clear", Description: "Clear the current form"},
	)
	if _, err := c.bot.Request(cmd); err != nil {
		return fmt.Errorf("register commands: %w", err)
	}
	return nil
}
