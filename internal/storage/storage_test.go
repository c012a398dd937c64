package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quorumlabs/quorum/internal/council"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "quorum.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleResult() council.Result {
	return council.Result{
		Stage1: []council.AdvisorResponse{
			{Model: "Advisor Alpha", Response: "First take."},
			{Model: "Advisor Beta", Response: "Second take."},
		},
		Stage2: []council.RankingEntry{
			{Model: "Advisor Alpha", Ranking: "FINAL RANKING:\n1. Response B\n2. Response A", ParsedRanking: []string{"Response B", "Response A"}},
		},
		LabelToModel: map[string]string{"Response A": "Advisor Alpha", "Response B": "Advisor Beta"},
		Aggregate: []council.AggregateRankingEntry{
			{Model: "Advisor Beta", AverageRank: 1.0, Votes: 1},
			{Model: "Advisor Alpha", AverageRank: 2.0, Votes: 1},
		},
		Stage3: council.SynthesisResult{Model: "chairman", Response: "The council finds."},
	}
}

func TestConversationLifecycle(t *testing.T) {
	s := testStore(t)

	conv, err := s.CreateConversation("conv-1")
	require.NoError(t, err)
	assert.Equal(t, "New Conversation", conv.Title)

	require.NoError(t, s.AddUserMessage("conv-1", "What is wisdom?"))
	require.NoError(t, s.AddAssistantMessage("conv-1", sampleResult()))

	got, err := s.GetConversation("conv-1")
	require.NoError(t, err)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "What is wisdom?", got.Messages[0].Content)
	assert.Equal(t, "assistant", got.Messages[1].Role)
	assert.Equal(t, "The council finds.", got.Messages[1].Content)

	require.NoError(t, s.DeleteConversation("conv-1"))
	_, err = s.GetConversation("conv-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAssistantMessageRoundTripsDeliberation(t *testing.T) {
	s := testStore(t)
	_, err := s.CreateConversation("conv-1")
	require.NoError(t, err)

	want := sampleResult()
	require.NoError(t, s.AddAssistantMessage("conv-1", want))

	got, err := s.GetConversation("conv-1")
	require.NoError(t, err)
	require.Len(t, got.Messages, 1)

	msg := got.Messages[0]
	assert.Equal(t, want.Stage1, msg.Stage1)
	assert.Equal(t, want.Stage2, msg.Stage2)
	assert.Equal(t, want.LabelToModel, msg.LabelToModel)
	assert.Equal(t, want.Aggregate, msg.Aggregate)
}

func TestListConversationsNewestFirst(t *testing.T) {
	s := testStore(t)
	_, err := s.CreateConversation("older")
	require.NoError(t, err)
	_, err = s.CreateConversation("newer")
	require.NoError(t, err)

	convs, err := s.ListConversations()
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.False(t, convs[0].CreatedAt.Before(convs[1].CreatedAt))
}

func TestUpdateConversationTitle(t *testing.T) {
	s := testStore(t)
	_, err := s.CreateConversation("conv-1")
	require.NoError(t, err)

	require.NoError(t, s.UpdateConversationTitle("conv-1", "Wisdom Inquiry"))

	got, err := s.GetConversation("conv-1")
	require.NoError(t, err)
	assert.Equal(t, "Wisdom Inquiry", got.Title)

	assert.ErrorIs(t, s.UpdateConversationTitle("missing", "x"), ErrNotFound)
}

func TestAddMessageToMissingConversation(t *testing.T) {
	s := testStore(t)
	assert.ErrorIs(t, s.AddUserMessage("missing", "hello"), ErrNotFound)
}

func TestDeleteMissingConversation(t *testing.T) {
	s := testStore(t)
	assert.ErrorIs(t, s.DeleteConversation("missing"), ErrNotFound)
}

func TestGroupChatLifecycle(t *testing.T) {
	s := testStore(t)

	sess, err := s.CreateGroupChat("chat-1", []string{"alpha", "beta"})
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, sess.MemberIDs)

	require.NoError(t, s.AddGroupUserMessage("chat-1", "Thoughts?"))
	require.NoError(t, s.AddGroupAssistantMessage("chat-1", []council.GroupChatResponse{
		{AdvisorID: "alpha", AdvisorName: "Advisor Alpha", Model: "model-a", Response: "Yes."},
		{AdvisorID: "beta", AdvisorName: "Advisor Beta", Model: "model-b", Response: "No."},
	}))

	got, err := s.GetGroupChat("chat-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, got.MemberIDs)
	require.Len(t, got.Messages, 2)
	assert.Len(t, got.Messages[1].Responses, 2)
	assert.Contains(t, got.Messages[1].Content, "Advisor Alpha: Yes.")
	assert.Contains(t, got.Messages[1].Content, "Advisor Beta: No.")

	require.NoError(t, s.DeleteGroupChat("chat-1"))
	_, err = s.GetGroupChat("chat-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGroupChatHistory(t *testing.T) {
	s := testStore(t)
	_, err := s.CreateGroupChat("chat-1", []string{"alpha"})
	require.NoError(t, err)

	require.NoError(t, s.AddGroupUserMessage("chat-1", "Hello"))
	require.NoError(t, s.AddGroupAssistantMessage("chat-1", []council.GroupChatResponse{
		{AdvisorID: "alpha", AdvisorName: "Advisor Alpha", Model: "model-a", Response: "Hi."},
	}))

	got, err := s.GetGroupChat("chat-1")
	require.NoError(t, err)

	hist := got.History()
	require.Len(t, hist, 2)
	assert.Equal(t, "user", hist[0].Role)
	assert.Equal(t, "Hello", hist[0].Content)
	assert.Empty(t, hist[0].Responses)
	assert.Equal(t, "assistant", hist[1].Role)
	assert.Contains(t, hist[1].Content, "Advisor Alpha: Hi.")
	// The context builder renders advisor turns from Responses; losing them
	// here would drop every assistant answer from group chat context.
	require.Len(t, hist[1].Responses, 1)
	assert.Equal(t, "Advisor Alpha", hist[1].Responses[0].AdvisorName)
	assert.Equal(t, "Hi.", hist[1].Responses[0].Response)
}
