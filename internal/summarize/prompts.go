package summarize

import (
	"fmt"
	"strings"
)

// buildChunkPrompt asks for a compressed rendition of one transcript chunk
// that keeps the task-relevant signal and drops chatter.
func buildChunkPrompt(chunkText string) string {
	var b strings.Builder

	b.WriteString("You are compressing a project chat transcript down to its key moments.\n\n")
	b.WriteString("Condense the dialog to:\n")
	b.WriteString("- main discussion topics\n")
	b.WriteString("- decisions made\n")
	b.WriteString("- tasks assigned and commitments given\n")
	b.WriteString("- deadlines and dates\n")
	b.WriteString("- important project details\n\n")
	b.WriteString("Keep the dialog structure (chats, participants, dates) but drop repetition, greetings, and small talk.\n\n")
	b.WriteString("Transcript:\n")
	b.WriteString(chunkText)

	return b.String()
}

// buildFoldPrompt merges the previous rolling digest with the most recent
// chunk summaries into an updated digest.
func buildFoldPrompt(prevDigest string, recent []string) string {
	var b strings.Builder

	b.WriteString("You maintain a rolling digest of a project chat.\n\n")
	if prevDigest != "" {
		b.WriteString("Previous digest:\n")
		b.WriteString(prevDigest)
		b.WriteString("\n\n")
	}
	b.WriteString("Recent summaries (oldest first):\n")
	for i, s := range recent {
		fmt.Fprintf(&b, "\n--- Part %d ---\n%s\n", i+1, s)
	}
	b.WriteString("\nProduce one updated digest that carries forward still-relevant facts from the previous digest ")
	b.WriteString("and integrates the recent summaries. Keep open tasks, decisions, deadlines, and owners. ")
	b.WriteString("Drop resolved or superseded items.\n")

	return b.String()
}
