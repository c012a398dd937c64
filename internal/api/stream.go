package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/quorumlabs/quorum/internal/council"
	"github.com/quorumlabs/quorum/internal/storage"
)

// streamMessage runs a deliberation and streams pipeline events as SSE.
// The deliberation record is persisted once the stream completes.
func (h *Handler) streamMessage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	req, ok := h.decodeMessage(w, r)
	if !ok {
		return
	}

	conv, err := h.store.GetConversation(id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.metrics.RecordTransportError("sse", "no_flusher")
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	opts := council.RunOptions{GenerateTitle: len(conv.Messages) == 0}
	h.persistUserTurn(id, req.Content)

	events, err := h.engine.Run(r.Context(), req.Content, h.advisors(), opts)
	if err != nil {
		h.metrics.RecordCouncilRun("error")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.metrics.IncActiveStreams("sse")
	defer h.metrics.DecActiveStreams("sse")
	setSSEHeaders(w)

	// Rebuild the result from the event stream so the persisted record
	// matches exactly what the client saw.
	var res council.Result
	outcome := "error"
	for ev := range events {
		switch ev.Type {
		case council.EventStage1Complete:
			res.Stage1 = ev.Responses
		case council.EventStage2Complete:
			res.Stage2 = ev.Rankings
			res.LabelToModel = ev.LabelToModel
			res.Aggregate = ev.Aggregate
		case council.EventStage3Complete:
			if ev.Synthesis != nil {
				res.Stage3 = *ev.Synthesis
			}
		case council.EventTitleComplete:
			res.Title = ev.Title
		case council.EventComplete:
			outcome = "complete"
		}

		if err := writeSSE(w, flusher, ev); err != nil {
			h.metrics.RecordTransportError("sse", "write")
			h.logger.Debug("stream write failed", zap.String("conversation", id), zap.Error(err))
			return
		}
	}

	h.metrics.RecordCouncilRun(outcome)
	if outcome == "complete" {
		h.persistDeliberation(id, res)
	}
}

// streamGroupMessage streams group chat progress as SSE. Members answer
// sequentially, so the stream has a start event, one complete event with all
// responses, and a terminal complete event.
func (h *Handler) streamGroupMessage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	req, ok := h.decodeMessage(w, r)
	if !ok {
		return
	}

	sess, err := h.store.GetGroupChat(id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "group chat not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.metrics.RecordTransportError("sse", "no_flusher")
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	h.metrics.IncActiveStreams("sse")
	defer h.metrics.DecActiveStreams("sse")
	setSSEHeaders(w)

	if err := writeSSE(w, flusher, council.Event{Type: council.EventResponsesStart}); err != nil {
		h.metrics.RecordTransportError("sse", "write")
		return
	}

	responses := h.engine.RunGroupChat(r.Context(), req.Content, h.members(sess.MemberIDs), sess.History())

	if err := writeSSE(w, flusher, council.Event{Type: council.EventResponsesComplete, Group: responses}); err != nil {
		h.metrics.RecordTransportError("sse", "write")
		return
	}

	if len(sess.Messages) == 0 {
		title := h.applyGroupChatTitle(r.Context(), id, req.Content)
		if err := writeSSE(w, flusher, council.Event{Type: council.EventTitleComplete, Title: title}); err != nil {
			h.metrics.RecordTransportError("sse", "write")
			return
		}
	}

	if err := h.store.AddGroupUserMessage(id, req.Content); err != nil {
		h.logger.Warn("persist group user message failed", zap.String("session", id), zap.Error(err))
	}
	if err := h.store.AddGroupAssistantMessage(id, responses); err != nil {
		h.logger.Warn("persist group responses failed", zap.String("session", id), zap.Error(err))
	}

	if err := writeSSE(w, flusher, council.Event{Type: council.EventComplete}); err != nil {
		h.metrics.RecordTransportError("sse", "write")
	}
}

func setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, ev council.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
