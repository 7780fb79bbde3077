package audit

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/zamaneghtesad/pressbot/internal/form"
)

type fakeSender struct {
	messages []string
	docs     []string // path
	captions []string
	err      error
}

func (f *fakeSender) SendChannelMessage(_ context.Context, _ int64, html string) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, html)
	return nil
}

func (f *fakeSender) SendChannelDocument(_ context.Context, _ int64, path, htmlCaption string) error {
	if f.err != nil {
		return f.err
	}
	f.docs = append(f.docs, path)
	f.captions = append(f.captions, htmlCaption)
	return nil
}

type fakePublisher struct {
	events   []string
	payloads []any
	err      error
}

func (f *fakePublisher) Publish(_ context.Context, event string, payload any) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	f.payloads = append(f.payloads, payload)
	return nil
}

var testUser = form.UserRef{ID: 7, Username: "sara", FirstName: "Sara"}

func TestUserStarted(t *testing.T) {
	sender := &fakeSender{}
	events := &fakePublisher{}
	sink := NewSink(-100123, sender, events, nil)

	sink.UserStarted(context.Background(), testUser)

	if len(sender.messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(sender.messages))
	}
	msg := sender.messages[0]
	if !strings.Contains(msg, "<strong>Sara</strong>") {
		t.Errorf("message %q missing bold name", msg)
	}
	if !strings.Contains(msg, "@sara") || !strings.Contains(msg, "<code>7</code>") {
		t.Errorf("message %q missing identity details", msg)
	}
	if len(events.events) != 1 || events.events[0] != "user.started" {
		t.Errorf("events = %v, want [user.started]", events.events)
	}
}

func TestPostPublished(t *testing.T) {
	sender := &fakeSender{}
	events := &fakePublisher{}
	sink := NewSink(-100123, sender, events, nil)

	sink.PostPublished(context.Background(), testUser, "/data/out/post_123.png")

	if len(sender.docs) != 1 || sender.docs[0] != "/data/out/post_123.png" {
		t.Fatalf("docs = %v", sender.docs)
	}
	if !strings.Contains(sender.captions[0], "finished their post") {
		t.Errorf("caption = %q", sender.captions[0])
	}
	if len(events.events) != 1 || events.events[0] != "post.published" {
		t.Errorf("events = %v, want [post.published]", events.events)
	}
	payload, ok := events.payloads[0].(map[string]any)
	if !ok {
		t.Fatalf("payload type %T", events.payloads[0])
	}
	if payload["artifact"] != "/data/out/post_123.png" || payload["user_id"] != int64(7) {
		t.Errorf("payload = %v", payload)
	}
	if payload["record_id"] == "" {
		t.Error("payload missing record_id")
	}
}

func TestChannelZeroDisablesForwarding(t *testing.T) {
	sender := &fakeSender{}
	events := &fakePublisher{}
	sink := NewSink(0, sender, events, nil)

	sink.UserStarted(context.Background(), testUser)
	sink.PostPublished(context.Background(), testUser, "/a.png")

	if len(sender.messages) != 0 || len(sender.docs) != 0 {
		t.Error("disabled channel still received records")
	}
	// Broker events are independent of the channel.
	if len(events.events) != 2 {
		t.Errorf("events = %v, want both", events.events)
	}
}

func TestSinkSwallowsFailures(t *testing.T) {
	sender := &fakeSender{err: errors.New("channel gone")}
	events := &fakePublisher{err: errors.New("broker gone")}
	sink := NewSink(-100123, sender, events, nil)

	// Must not panic or propagate anything.
	sink.UserStarted(context.Background(), testUser)
	sink.PostPublished(context.Background(), testUser, "/a.png")
}

func TestNilEventPublisher(t *testing.T) {
	sender := &fakeSender{}
	sink := NewSink(-100123, sender, nil, nil)

	sink.PostPublished(context.Background(), testUser, "/a.png")
	if len(sender.docs) != 1 {
		t.Error("channel record not sent with nil publisher")
	}
}

func TestNoUsername(t *testing.T) {
	sender := &fakeSender{}
	sink := NewSink(-100123, sender, nil, nil)

	sink.UserStarted(context.Background(), form.UserRef{ID: 9, FirstName: "Omid"})
	if strings.Contains(sender.messages[0], "@") {
		t.Errorf("message %q shows an @ for a user without username", sender.messages[0])
	}
}

func TestHTMLForChat(t *testing.T) {
	tests := []struct {
		md   string
		want string
	}{
		{"**bold**", "<strong>bold</strong>"},
		{"`7`", "<code>7</code>"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		got := htmlForChat(tt.md)
		if got != tt.want {
			t.Errorf("htmlForChat(%q) = %q, want %q", tt.md, got, tt.want)
		}
	}
	// Block tags never reach the chat service.
	if out := htmlForChat("line one\n\nline two"); strings.Contains(out, "<p>") {
		t.Errorf("output %q contains a block tag", out)
	}
}
