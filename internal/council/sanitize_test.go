package council

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCleanResponseRemovesReasoningBlock(t *testing.T) {
	t.Parallel()

	raw := "<think>\nSome internal reasoning.\n</think>\nHere is the actual answer."
	require.Equal(t, "Here is the actual answer.", CleanResponse(raw))
}

func TestCleanResponseNoMarkup(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Just a normal response.", CleanResponse("Just a normal response."))
}

func TestCleanResponseInlineBlock(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Start  End", CleanResponse("Start <think>thinking</think> End"))
}

func TestCleanResponseUnterminatedBlock(t *testing.T) {
	t.Parallel()

	raw := "Answer so far.\n<think>never closed, keeps going"
	require.Equal(t, "Answer so far.", CleanResponse(raw))
}

func TestCleanResponseMultipleBlocks(t *testing.T) {
	t.Parallel()

	raw := "<think>one</think>A<think>two</think>B"
	require.Equal(t, "AB", CleanResponse(raw))
}

func TestCleanResponseCollapsesNewlines(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Line 1\n\nLine 2", CleanResponse("Line 1\n\n\n\nLine 2"))
	require.Equal(t, "Line 1\n\nLine 2", CleanResponse("Line 1\n\nLine 2"))
}

func TestCleanResponseIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"",
		"plain text",
		"<think>x</think>answer",
		"Start <think>inline</think> End",
		"unterminated <think>tail",
		"a\n\n\n\n\nb\n\n\nc",
		"  padded  \n\n\n<think>gone</think> done ",
	}
	for _, in := range inputs {
		once := CleanResponse(in)
		require.Equal(t, once, CleanResponse(once), "not idempotent for %q", in)
	}
}
