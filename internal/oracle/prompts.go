package oracle

import (
	"fmt"
	"strings"

	"github.com/stellarlinkco/daybook/internal/source"
)

// periodHint turns the period key into a sentence fragment steering the
// diary voice for the slice of day being summarized.
func periodHint(period string) string {
	switch period {
	case "morning":
		return "This covers the morning so far, so keep the tone of a day that is just getting started."
	case "midday":
		return "This covers the day up to the afternoon, so reflect a day in progress."
	case "evening":
		return "This covers the whole day, so write it as a complete daily entry."
	case "history":
		return "This is a past day, so write it as a finished memory."
	default:
		return ""
	}
}

func chatTypeHint(chatType string) string {
	if chatType == "group" {
		return "The conversation happened in a group chat, so mention the people involved where it matters."
	}
	return "The conversation was a private chat with one person."
}

func formatMessages(msgs []source.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		fmt.Fprintf(&b, "[%s] %s: %s\n", m.Time.Format("15:04"), m.Sender, m.Content)
	}
	return b.String()
}

func identityPreamble(identity string) string {
	if strings.TrimSpace(identity) == "" {
		return "You are keeping a personal diary of your conversations."
	}
	return fmt.Sprintf("You are keeping a personal diary of your conversations. This is who you are:\n%s", identity)
}

func summarizePrompt(req SummarizeRequest) string {
	var b strings.Builder
	b.WriteString(identityPreamble(req.Identity))
	b.WriteString("\n\n")
	b.WriteString("Write a first-person diary summary of the following conversation. ")
	b.WriteString(chatTypeHint(req.ChatType))
	if hint := periodHint(req.Period); hint != "" {
		b.WriteString(" ")
		b.WriteString(hint)
	}
	fmt.Fprintf(&b, "\nKeep it within about %d words. Capture what happened, what was decided and how it felt. Plain prose, no headings, no bullet points.\n\n", req.WordBudget)
	b.WriteString("Conversation:\n")
	b.WriteString(formatMessages(req.Messages))
	return b.String()
}

func compressPrompt(req CompressRequest) string {
	var b strings.Builder
	b.WriteString(identityPreamble(req.Identity))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Condense the following diary entry to about %d words. Keep the first-person voice and the most important events, drop detail rather than invent it.\n\n", req.WordBudget)
	b.WriteString("Entry:\n")
	b.WriteString(req.Content)
	return b.String()
}

func mergePrompt(req MergeRequest) string {
	var b strings.Builder
	b.WriteString(identityPreamble(req.Identity))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "The following are partial diary summaries of consecutive slices of the same day, in order. Merge them into one coherent first-person entry of about %d words. ", req.WordBudget)
	b.WriteString(chatTypeHint(req.ChatType))
	b.WriteString(" Preserve chronology, remove repetition.\n\n")
	for i, part := range req.Parts {
		fmt.Fprintf(&b, "Part %d:\n%s\n\n", i+1, part)
	}
	return b.String()
}
