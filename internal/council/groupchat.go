package council

import (
	"context"

	"go.uber.org/zap"

	"github.com/quorumlabs/quorum/internal/llm"
)

// RunGroupChat has each selected member answer the question in turn, with the
// rolling conversation history as context. Members respond independently of
// each other within the turn; a failed call degrades to an empty response.
func (e *Engine) RunGroupChat(ctx context.Context, question string, members []Advisor, history []HistoryMessage) []GroupChatResponse {
	if len(members) == 0 {
		return []GroupChatResponse{}
	}

	contextText := buildGroupChatContext(history, e.cfg.HistoryWindow)
	prompt := buildGroupChatPrompt(question, contextText)

	out := make([]GroupChatResponse, 0, len(members))
	for _, member := range members {
		messages := []llm.ChatMessage{{Role: llm.RoleUser, Content: prompt}}
		content, err := e.queryAdvisor(ctx, "group_chat", member, messages)
		if err != nil {
			e.logger.Warn("group chat member failed",
				zap.String("advisor", member.Name),
				zap.String("model", member.Model),
				zap.Error(err))
			content = ""
		}
		out = append(out, GroupChatResponse{
			AdvisorID:   member.ID,
			AdvisorName: member.Name,
			Model:       member.Model,
			Response:    CleanResponse(content),
		})
	}
	return out
}
