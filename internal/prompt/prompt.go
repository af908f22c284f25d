// Package prompt assembles the tutoring prompt sent to the model.
//
// Assembly is pure: the same context passages, history window, and question
// always produce the same string. All policy text (persona, scope rules,
// diagram syntax rules) lives here so the orchestrator stays free of prompt
// engineering.
package prompt

import (
	"strings"

	"github.com/osbuddy/osbuddy/internal/store"
)

// DefaultHistoryLimit bounds how many recent messages are included in the
// prompt. Older turns are dropped silently.
const DefaultHistoryLimit = 10

// noContextPlaceholder stands in when retrieval produced no passages, so the
// prompt shape stays stable across RAG and direct modes.
const noContextPlaceholder = "(no reference passages available)"

const persona = `You are a strict but helpful Tutor for Operating Systems (based on Silberschatz OS Concepts).

Your Goal: Answer the user's question about Operating Systems.

STRICT RULES:
1. Answer ONLY questions related to Operating Systems, Computer Science, or Coding.
2. If the user asks about anything else (e.g., General Knowledge, Sports, Movies, Geography), politely REFUSE.
   - Example Refusal: "I am an OS Tutor. I can only answer questions about Operating Systems."
3. Use the Conversation History to understand context (e.g. "What about threads?" refers to previous topic).
4. If Reference Material is provided, prefer it over general knowledge and ground your answer in it.

DIAGRAM GENERATION RULES:
1. If key concepts are discussed, generate a Mermaid.js diagram.
2. SYNTAX "GOLDEN RULES" (CRITICAL):
   - ALWAYS use double QUOTES for node labels: ` + "`id[\"Label Text\"]`. NEVER `id[Label Text]`." + `
   - Node IDs must NOT contain spaces or special chars. Use ` + "`node1` not `node 1`" + `.
   - AVOID special characters inside quotes if possible. Encode if necessary.
   - Use ` + "`graph TD`" + ` (Top-Down) or ` + "`graph LR`" + ` (Left-Right) for flows.
   - Use ` + "`sequenceDiagram`" + ` for steps.
   - FOR GANTT CHARTS (Scheduling):
     - MUST use ` + "`dateFormat s` and `axisFormat %s`" + `.
     - Start from 0. Do NOT use dates (2024-...).
     - Example: ` + "`Process P1 : active, 0, 5s`" + `
   - FOR MLFQ / Multilevel Queue: Use ` + "`graph TD`" + ` (Flowchart) only. Do NOT use Gantt or Block diagrams for logic explanation.
3. EXAMPLES:
   - Process: ` + "`graph LR; A[\"Start\"] --> B[\"Process\"];`" + `
   - Hierarchy: ` + "`graph TD; Parent[\"Parent\"] --> Child[\"Child\"];`" + `
4. Do NOT use ` + "`block-beta` or `mindmap`" + `.
5. Output ONLY valid Markdown with ` + "`mermaid`" + ` tag.`

// Builder assembles prompts. The zero value uses DefaultHistoryLimit.
type Builder struct {
	// HistoryLimit is the maximum number of trailing history messages
	// included in the prompt. Values below 1 fall back to the default.
	HistoryLimit int
}

// Build produces the full prompt for one chat turn. context holds retrieved
// reference passages (may be empty), history is the session transcript
// including the current user turn, question is the raw user message.
func (b Builder) Build(context []string, history []store.Message, question string) string {
	limit := b.HistoryLimit
	if limit < 1 {
		limit = DefaultHistoryLimit
	}

	var sb strings.Builder
	sb.WriteString(persona)
	sb.WriteString("\n\nReference Material:\n")
	sb.WriteString(formatContext(context))
	sb.WriteString("\n\nConversation History:\n")
	sb.WriteString(formatHistory(history, limit))
	sb.WriteString("\nCurrent Question:\n")
	sb.WriteString(question)
	sb.WriteString("\n")
	return sb.String()
}

func formatContext(passages []string) string {
	var kept []string
	for _, p := range passages {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return noContextPlaceholder
	}
	return strings.Join(kept, "\n---\n")
}

func formatHistory(history []store.Message, limit int) string {
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	var sb strings.Builder
	for _, msg := range history {
		role := "Assistant"
		if msg.Role == store.RoleUser {
			role = "User"
		}
		sb.WriteString(role)
		sb.WriteString(": ")
		sb.WriteString(msg.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}
