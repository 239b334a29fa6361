package context

import (
	"github.com/DewminaUdayashan/meridian/pkg/models"
)

// SummaryMetadataKey is the metadata key used to identify summary messages.
const SummaryMetadataKey = "meridian_summary"

// SummaryVersionKey is the metadata key for summary version tracking.
const SummaryVersionKey = "summary_version"

// CoversUntilKey is the metadata key indicating which message ID the summary covers up to.
const CoversUntilKey = "covers_until"

// FindLatestSummary finds the most recent summary message in history.
// Returns nil if no summary exists.
func FindLatestSummary(history []*models.Message) *models.Message {
	// Scan from end (most recent) to find latest summary
	for i := len(history) - 1; i >= 0; i-- {
		m := history[i]
		if m == nil || m.Metadata == nil {
			continue
		}
		if val, ok := m.Metadata[SummaryMetadataKey]; ok {
			if b, ok := val.(bool); ok && b {
				return m
			}
		}
	}
	return nil
}

// MessagesSinceSummary returns messages that came after the given summary.
// If summary is nil, returns all messages.
func MessagesSinceSummary(history []*models.Message, summary *models.Message) []*models.Message {
	if summary == nil {
		return history
	}

	// Find the summary's position in history
	summaryIdx := -1
	for i, m := range history {
		if m != nil && m.ID == summary.ID {
			summaryIdx = i
			break
		}
	}

	// If summary not found in history, return all messages
	if summaryIdx < 0 {
		return history
	}

	// Return messages after the summary
	if summaryIdx+1 >= len(history) {
		return nil
	}
	return history[summaryIdx+1:]
}

// NeedsSummarization checks if the history needs summarization based on thresholds.
func NeedsSummarization(history []*models.Message, summary *models.Message, maxMsgsBeforeSummary int) bool {
	messagesSince := MessagesSinceSummary(history, summary)
	return len(messagesSince) > maxMsgsBeforeSummary
}

// CreateSummaryMessage creates a new summary message with proper metadata.
func CreateSummaryMessage(sessionID, summaryContent, coversUntilMsgID string) *models.Message {
	return &models.Message{
		SessionID: sessionID,
		Role:      models.RoleSystem,
		Content:   summaryContent,
		Metadata: map[string]any{
			SummaryMetadataKey: true,
			SummaryVersionKey:  1,
			CoversUntilKey:     coversUntilMsgID,
		},
	}
}

// GetMessagesToSummarize returns older messages that should be summarized.
// It keeps the most recent `keepRecent` messages and returns the rest for
// summarization, cut at a safe boundary (see safeCutIndex) so a tool call
// and its result never end up split across the summary/kept-history line.
func GetMessagesToSummarize(history []*models.Message, summary *models.Message, keepRecent int) []*models.Message {
	messages := MessagesSinceSummary(history, summary)

	// Filter out summary messages
	filtered := make([]*models.Message, 0, len(messages))
	for _, m := range messages {
		if m == nil || m.Metadata == nil {
			filtered = append(filtered, m)
			continue
		}
		if val, ok := m.Metadata[SummaryMetadataKey]; ok {
			if b, ok := val.(bool); ok && b {
				continue // Skip summary messages
			}
		}
		filtered = append(filtered, m)
	}

	if len(filtered) <= keepRecent {
		return nil
	}
	cut := safeCutIndex(filtered, len(filtered)-keepRecent)
	if cut <= 0 {
		return nil
	}
	return filtered[:cut]
}

// safeCutIndex finds the largest index <= want at which it is safe to split
// a message slice into "summarize this" / "keep this" halves: the message at
// the cut must not itself be a tool result, and the message immediately
// before it must not be an assistant turn that issued tool calls still
// awaiting their results. Cutting there would hand the summarizer half of a
// tool round-trip and leave the kept history starting on an orphaned tool
// result, which providers reject.
//
// want is clamped to [0, len(messages)]. If no safe index exists at or
// before want, the search continues backward to 0; if even 0 is unsafe
// (want was 0 and messages[0] is a tool result with no preceding assistant
// turn in scope), 0 is still returned since there is nothing earlier to cut
// at instead.
func safeCutIndex(messages []*models.Message, want int) int {
	if want > len(messages) {
		want = len(messages)
	}
	if want < 0 {
		want = 0
	}
	for i := want; i > 0; i-- {
		if isSafeCut(messages, i) {
			return i
		}
	}
	return 0
}

// isSafeCut reports whether messages[:i] / messages[i:] is a safe split
// point: messages[i] is not a tool result, and messages[i-1] is not an
// assistant message with pending tool calls.
func isSafeCut(messages []*models.Message, i int) bool {
	if i <= 0 || i >= len(messages) {
		return i == len(messages)
	}
	if messages[i] != nil && messages[i].Role == models.RoleTool {
		return false
	}
	prev := messages[i-1]
	if prev != nil && prev.Role == models.RoleAssistant && len(prev.ToolCalls) > 0 {
		return false
	}
	return true
}
