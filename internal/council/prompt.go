package council

import (
	"fmt"
	"strings"
)

// buildRankingPrompt asks one reviewer to blind-rank the labeled stage-1
// answers. Real model identities never appear in this text.
func buildRankingPrompt(question string, stage1 []AdvisorResponse, labels LabelMap) string {
	var b strings.Builder
	b.WriteString("Several anonymous advisors answered the question below. Evaluate each answer for accuracy, depth, and clarity, then rank them from best to worst.\n\n")
	fmt.Fprintf(&b, "Question:\n%s\n\n", question)

	names := labels.Labels()
	for i, resp := range stage1 {
		fmt.Fprintf(&b, "%s:\n%s\n\n", names[i], resp.Response)
	}

	b.WriteString("After your evaluation, finish with the header line below followed by a numbered list, one label per line, best first:\n\n")
	b.WriteString(RankingHeader + "\n")
	for i := range stage1 {
		fmt.Fprintf(&b, "%d. <label>\n", i+1)
	}
	return b.String()
}

// buildSynthesisPrompt feeds the chairman the full deliberation transcript.
func buildSynthesisPrompt(question string, stage1 []AdvisorResponse, stage2 []RankingEntry, labels LabelMap) string {
	var b strings.Builder
	b.WriteString("You are the chairman of an advisory council. Several advisors answered a question and then peer-ranked each other's answers. Synthesize one final answer that takes the best of every response, weighted by the rankings.\n\n")
	fmt.Fprintf(&b, "Question:\n%s\n\n", question)

	b.WriteString("Advisor answers:\n\n")
	names := labels.Labels()
	for i, resp := range stage1 {
		fmt.Fprintf(&b, "%s:\n%s\n\n", names[i], resp.Response)
	}

	b.WriteString("Peer rankings:\n\n")
	for i, entry := range stage2 {
		fmt.Fprintf(&b, "Reviewer %d:\n%s\n\n", i+1, entry.Ranking)
	}

	b.WriteString("Write the single best final answer to the question. Do not mention the advisors, labels, or the ranking process.")
	return b.String()
}

// buildTitlePrompt asks for a short conversation title.
func buildTitlePrompt(firstMessage string) string {
	return fmt.Sprintf("Generate a short title (at most six words) summarizing the following message. Return only the title, with no quotes or punctuation around it.\n\nMessage:\n%s", firstMessage)
}

// buildGroupChatContext renders the last historyWindow turns as plain text.
func buildGroupChatContext(history []HistoryMessage, window int) string {
	if len(history) == 0 || window == 0 {
		return ""
	}
	if window > 0 && len(history) > window {
		history = history[len(history)-window:]
	}

	var b strings.Builder
	b.WriteString("Previous conversation:")
	for _, msg := range history {
		switch {
		case msg.Role == "user":
			fmt.Fprintf(&b, "\nUser: %s", msg.Content)
		case msg.Role == "assistant" && len(msg.Responses) > 0:
			for _, resp := range msg.Responses {
				fmt.Fprintf(&b, "\n%s: %s", resp.AdvisorName, resp.Response)
			}
		}
	}
	return b.String()
}

// buildGroupChatPrompt combines rolling context with the latest question.
func buildGroupChatPrompt(question, context string) string {
	if context == "" {
		return question
	}
	return fmt.Sprintf("%s\n\nUser: %s\n\nPlease respond to the user's latest question, taking the conversation history into account.", context, question)
}
