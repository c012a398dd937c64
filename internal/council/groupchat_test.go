package council

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quorumlabs/quorum/internal/llm"
	llmmock "github.com/quorumlabs/quorum/internal/llm/mock"
)

func TestRunGroupChatIncludesHistoryContext(t *testing.T) {
	t.Parallel()

	provider := &llmmock.Provider{
		ChatFn: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
			last := req.Messages[len(req.Messages)-1]
			require.Contains(t, last.Content, "Previous conversation:")
			require.Contains(t, last.Content, "User: earlier question")
			require.Contains(t, last.Content, "Advisor Alpha: earlier answer")
			return llm.ChatResponse{Message: llm.ChatMessage{Role: llm.RoleAssistant, Content: "reply"}}, nil
		},
	}
	e := testEngine(provider)

	history := []HistoryMessage{
		{Role: "user", Content: "earlier question"},
		{Role: "assistant", Responses: []GroupChatResponse{
			{AdvisorID: "alpha", AdvisorName: "Advisor Alpha", Model: "model-alpha", Response: "earlier answer"},
		}},
	}

	out := e.RunGroupChat(context.Background(), "follow-up", testRoster()[:2], history)
	require.Len(t, out, 2)
	require.Equal(t, "alpha", out[0].AdvisorID)
	require.Equal(t, "Advisor Alpha", out[0].AdvisorName)
	require.Equal(t, "reply", out[0].Response)
}

func TestRunGroupChatWindowsHistory(t *testing.T) {
	t.Parallel()

	provider := &llmmock.Provider{
		ChatFn: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
			last := req.Messages[len(req.Messages)-1]
			require.NotContains(t, last.Content, "ancient question")
			require.Contains(t, last.Content, "recent question")
			return llm.ChatResponse{Message: llm.ChatMessage{Role: llm.RoleAssistant, Content: "ok"}}, nil
		},
	}
	e := testEngine(provider)

	history := []HistoryMessage{{Role: "user", Content: "ancient question"}}
	for i := 0; i < 10; i++ {
		history = append(history, HistoryMessage{Role: "user", Content: "recent question"})
	}

	out := e.RunGroupChat(context.Background(), "now", testRoster()[:1], history)
	require.Len(t, out, 1)
}

func TestRunGroupChatNoHistoryUsesBareQuestion(t *testing.T) {
	t.Parallel()

	provider := &llmmock.Provider{
		ChatFn: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
			last := req.Messages[len(req.Messages)-1]
			require.Equal(t, "just the question", last.Content)
			return llm.ChatResponse{Message: llm.ChatMessage{Role: llm.RoleAssistant, Content: "ok"}}, nil
		},
	}
	e := testEngine(provider)

	out := e.RunGroupChat(context.Background(), "just the question", testRoster()[:1], nil)
	require.Len(t, out, 1)
}

func TestRunGroupChatDegradesFailedMember(t *testing.T) {
	t.Parallel()

	provider := &llmmock.Provider{
		ChatFn: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
			if req.Model == "model-beta" {
				return llm.ChatResponse{}, errors.New("unreachable")
			}
			return llm.ChatResponse{Message: llm.ChatMessage{Role: llm.RoleAssistant, Content: strings.ToUpper(req.Model)}}, nil
		},
	}
	e := testEngine(provider)

	out := e.RunGroupChat(context.Background(), "q", testRoster(), nil)
	require.Len(t, out, 3)
	require.NotEmpty(t, out[0].Response)
	require.Empty(t, out[1].Response)
	require.NotEmpty(t, out[2].Response)
}

func TestRunGroupChatEmptyMembers(t *testing.T) {
	t.Parallel()

	provider := &llmmock.Provider{}
	e := testEngine(provider)

	out := e.RunGroupChat(context.Background(), "q", nil, nil)
	require.Empty(t, out)
	require.Zero(t, provider.CallCount())
}
