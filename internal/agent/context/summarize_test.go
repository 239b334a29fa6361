package context

import (
	"context"
	"strings"
	"testing"

	"github.com/DewminaUdayashan/meridian/pkg/models"
)

type fakeSummaryProvider struct {
	summary string
	err     error
	calls   int
}

func (p *fakeSummaryProvider) Summarize(ctx context.Context, messages []*models.Message, maxLength int) (string, error) {
	p.calls++
	if p.err != nil {
		return "", p.err
	}
	if p.summary != "" {
		return p.summary, nil
	}
	return "summary", nil
}

func TestGuardLargeMessage_LeavesSmallMessageUntouched(t *testing.T) {
	provider := &fakeSummaryProvider{}
	summarizer := NewSummarizer(provider, DefaultSummarizationConfig())

	msg := &models.Message{ID: "1", Content: "short"}
	result, err := summarizer.GuardLargeMessage(context.Background(), msg, 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != msg {
		t.Fatal("expected the original message to be returned unchanged")
	}
	if provider.calls != 0 {
		t.Fatalf("expected no summarization call for a small message, got %d", provider.calls)
	}
}

func TestGuardLargeMessage_SummarizesMessageOverHalfTheWindow(t *testing.T) {
	provider := &fakeSummaryProvider{summary: "condensed"}
	summarizer := NewSummarizer(provider, DefaultSummarizationConfig())

	msg := &models.Message{ID: "1", Content: strings.Repeat("x", 600)}
	result, err := summarizer.GuardLargeMessage(context.Background(), msg, 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == msg {
		t.Fatal("expected a guarded copy, not the original message")
	}
	if !strings.Contains(result.Content, "condensed") {
		t.Fatalf("expected guarded content to include the provider's summary, got %q", result.Content)
	}
	if provider.calls != 1 {
		t.Fatalf("expected exactly one summarization call, got %d", provider.calls)
	}
	if msg.Content != strings.Repeat("x", 600) {
		t.Fatal("expected the original message to be left untouched")
	}
}

func TestGuardLargeMessage_PropagatesSummarizationError(t *testing.T) {
	wantErr := context.DeadlineExceeded
	provider := &fakeSummaryProvider{err: wantErr}
	summarizer := NewSummarizer(provider, DefaultSummarizationConfig())

	msg := &models.Message{ID: "1", Content: strings.Repeat("x", 600)}
	if _, err := summarizer.GuardLargeMessage(context.Background(), msg, 1000); err == nil {
		t.Fatal("expected an error to propagate from the summarization provider")
	}
}
