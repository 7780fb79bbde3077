package form

import "context"

// EventKind distinguishes the inbound interaction types the controller
// handles.
type EventKind int

const (
	// EventText is a plain text message from the user.
	EventText EventKind = iota
	// EventPhoto is a photo message. Photos carries every resolution
	// variant the transport offers.
	EventPhoto
	// EventAction is a button press; Action carries the callback data.
	EventAction
)

// PhotoSize is one resolution variant of an inbound photo.
type PhotoSize struct {
	FileID string
	Width  int
	Height int
}

// Event is a single inbound interaction, already scoped to one
// conversation by the transport bridge. Events for a conversation are
// delivered one at a time, in arrival order.
type Event struct {
	Conversation string
	Kind         EventKind
	MessageID    int
	Text         string
	Photos       []PhotoSize
	Action       string
	From         UserRef
}

// MessageRef identifies a message the transport sent on our behalf.
type MessageRef struct {
	ID int
}

// Transport is the narrow chat-transport surface the form engine
// depends on: send, edit content/attachment, edit control set, delete,
// and fetch binary content by attachment handle. The Telegram adapter
// implements it; tests use an in-memory fake.
type Transport interface {
	// SendMessage sends a plain text message, optionally with a menu.
	SendMessage(ctx context.Context, conversation, text string, menu *Menu) (MessageRef, error)
	// SendPhoto sends a photo from a local path with a caption and menu.
	SendPhoto(ctx context.Context, conversation, path, caption string, menu *Menu) (MessageRef, error)
	// SendDocument sends a local file as a document.
	SendDocument(ctx context.Context, conversation, path, caption string) (MessageRef, error)
	// EditMessagePhoto replaces a message's photo and caption in place.
	EditMessagePhoto(ctx context.Context, conversation string, messageID int, path, caption string) error
	// EditMessageMenu replaces a message's control set in place.
	EditMessageMenu(ctx context.Context, conversation string, messageID int, menu Menu) error
	// DeleteMessage removes a message. Deleting an already-gone message
	// is not an error the caller needs to act on.
	DeleteMessage(ctx context.Context, conversation string, messageID int) error
	// DownloadPhoto fetches the binary content behind a photo handle
	// and writes it to destPath.
	DownloadPhoto(ctx context.Context, fileID, destPath string) error
}

// Renderer produces the composed output artifact for a field snapshot.
// Implementations must serialize concurrent renders for the same
// conversation and bound their execution time.
type Renderer interface {
	Render(ctx context.Context, snap Snapshot, outputPath string) error
}

// Sink receives the published artifact for record keeping. Calls are
// best-effort: implementations swallow and log their own failures so a
// sink outage never blocks the user-visible result.
type Sink interface {
	PostPublished(ctx context.Context, user UserRef, artifactPath string)
}
