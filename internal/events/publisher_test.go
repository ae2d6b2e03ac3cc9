package events

import (
	"context"
	"io"
	"log/slog"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewEvent(t *testing.T) {
	event := NewEvent(TypeQuizPublished, QuizEvent{QuizID: 3, Title: "Midterm"})

	if event.ID == "" {
		t.Error("expected a generated event id")
	}
	if event.Type != TypeQuizPublished {
		t.Errorf("unexpected type %q", event.Type)
	}
	if event.Source != "exam-platform" {
		t.Errorf("unexpected source %q", event.Source)
	}
	if event.Version != "1.0" {
		t.Errorf("unexpected version %q", event.Version)
	}
	if event.Timestamp.IsZero() {
		t.Error("expected a timestamp")
	}

	data, ok := event.Data.(QuizEvent)
	if !ok || data.QuizID != 3 {
		t.Errorf("unexpected payload %+v", event.Data)
	}
}

func TestMockEventPublisher(t *testing.T) {
	publisher := NewMockEventPublisher(testLogger())

	first := NewEvent(TypeUserRegistered, UserEvent{UserID: "u1"})
	second := NewEvent(TypeUserSuspended, UserEvent{UserID: "u1"})

	if err := publisher.Publish(context.Background(), first); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if err := publisher.Publish(context.Background(), second); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	published := publisher.GetPublishedEvents()
	if len(published) != 2 {
		t.Fatalf("expected 2 events, got %d", len(published))
	}
	if published[0].Type != TypeUserRegistered || published[1].Type != TypeUserSuspended {
		t.Errorf("events out of order: %s, %s", published[0].Type, published[1].Type)
	}

	publisher.ClearEvents()
	if got := publisher.GetPublishedEvents(); len(got) != 0 {
		t.Errorf("expected no events after clear, got %d", len(got))
	}

	if err := publisher.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
