// Package api exposes the deliberation service over HTTP: conversation and
// group chat CRUD, council configuration, model discovery, and SSE streaming.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quorumlabs/quorum/internal/config"
	"github.com/quorumlabs/quorum/internal/council"
	"github.com/quorumlabs/quorum/internal/llm"
	"github.com/quorumlabs/quorum/internal/observability"
	"github.com/quorumlabs/quorum/internal/persona"
	"github.com/quorumlabs/quorum/internal/storage"
)

// Engine is the deliberation pipeline surface the handlers need.
type Engine interface {
	Run(ctx context.Context, question string, advisors []council.Advisor, opts council.RunOptions) (<-chan council.Event, error)
	Deliberate(ctx context.Context, question string, advisors []council.Advisor, opts council.RunOptions) (council.Result, error)
	RunGroupChat(ctx context.Context, question string, members []council.Advisor, history []council.HistoryMessage) []council.GroupChatResponse
	GenerateTitle(ctx context.Context, firstMessage string) string
}

// Probe reports model runtime status for the monitoring endpoint.
type Probe interface {
	Status(ctx context.Context) observability.RuntimeStatus
}

// Handler wires the HTTP surface to the engine, store, and roster.
type Handler struct {
	engine     Engine
	store      *storage.Store
	roster     *config.RosterStore
	personaLib *persona.Library
	personaGen *persona.Generator
	registry   *llm.Registry
	probe      Probe
	metrics    *observability.Metrics
	chairman   string
	logger     *zap.Logger
}

// NewHandler constructs the API handler.
func NewHandler(engine Engine, store *storage.Store, roster *config.RosterStore, lib *persona.Library, gen *persona.Generator, registry *llm.Registry, probe Probe, metrics *observability.Metrics, chairman string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		engine:     engine,
		store:      store,
		roster:     roster,
		personaLib: lib,
		personaGen: gen,
		registry:   registry,
		probe:      probe,
		metrics:    metrics,
		chairman:   chairman,
		logger:     logger,
	}
}

// Register mounts all API routes on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/models", h.listModels)
	mux.HandleFunc("GET /api/monitoring", h.monitoring)

	mux.HandleFunc("GET /api/council/config", h.getCouncilConfig)
	mux.HandleFunc("POST /api/council/config", h.updateCouncilConfig)

	mux.HandleFunc("GET /api/conversations", h.listConversations)
	mux.HandleFunc("POST /api/conversations", h.createConversation)
	mux.HandleFunc("GET /api/conversations/{id}", h.getConversation)
	mux.HandleFunc("DELETE /api/conversations/{id}", h.deleteConversation)
	mux.HandleFunc("POST /api/conversations/{id}/message", h.sendMessage)
	mux.HandleFunc("POST /api/conversations/{id}/message/stream", h.streamMessage)

	mux.HandleFunc("GET /api/groupchats", h.listGroupChats)
	mux.HandleFunc("POST /api/groupchats", h.createGroupChat)
	mux.HandleFunc("GET /api/groupchats/{id}", h.getGroupChat)
	mux.HandleFunc("DELETE /api/groupchats/{id}", h.deleteGroupChat)
	mux.HandleFunc("POST /api/groupchats/{id}/message", h.sendGroupMessage)
	mux.HandleFunc("POST /api/groupchats/{id}/message/stream", h.streamGroupMessage)
}

func (h *Handler) listModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ModelsResponse{
		Models:       h.registry.Models(),
		DefaultModel: h.registry.DefaultModel(),
	})
}

func (h *Handler) monitoring(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, MonitoringResponse{Ollama: h.probe.Status(r.Context())})
}

func (h *Handler) getCouncilConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, CouncilConfigResponse{
		Advisors: h.roster.Current(),
		Chairman: h.chairman,
	})
}

func (h *Handler) updateCouncilConfig(w http.ResponseWriter, r *http.Request) {
	var req UpdateCouncilConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if len(req.Advisors) == 0 {
		writeError(w, http.StatusBadRequest, "advisors must not be empty")
		return
	}
	seen := map[string]bool{}
	for i, adv := range req.Advisors {
		if adv.ID == "" || adv.Name == "" || adv.Model == "" {
			writeError(w, http.StatusBadRequest, "each advisor needs id, name, and model")
			return
		}
		if seen[adv.ID] {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("duplicate advisor id %q", adv.ID))
			return
		}
		seen[adv.ID] = true

		// New seats without a persona file get one generated, so the next
		// deliberation can load a system prompt.
		if adv.PromptFile == "" && h.personaGen != nil {
			md := h.personaGen.GenerateMarkdown(r.Context(), adv.Name, adv.Description)
			path, err := persona.SaveFile(h.personaLib.Dir(), adv.Name, md)
			if err != nil {
				h.logger.Warn("persona generation failed", zap.String("advisor", adv.ID), zap.Error(err))
				continue
			}
			req.Advisors[i].PromptFile = filepath.Base(path)
		}
	}

	if err := h.roster.Replace(req.Advisors); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("save roster: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, CouncilConfigResponse{Advisors: h.roster.Current(), Chairman: h.chairman})
}

func (h *Handler) listConversations(w http.ResponseWriter, r *http.Request) {
	convs, err := h.store.ListConversations()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, convs)
}

func (h *Handler) createConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := h.store.CreateConversation(uuid.NewString())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, conv)
}

func (h *Handler) getConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := h.store.GetConversation(r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (h *Handler) deleteConversation(w http.ResponseWriter, r *http.Request) {
	err := h.store.DeleteConversation(r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// sendMessage runs a full deliberation synchronously and returns the result.
func (h *Handler) sendMessage(w http.ResponseWriter, r *http.Request) {
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

	opts := council.RunOptions{GenerateTitle: len(conv.Messages) == 0}
	h.persistUserTurn(id, req.Content)

	res, err := h.engine.Deliberate(r.Context(), req.Content, h.advisors(), opts)
	if err != nil {
		h.metrics.RecordCouncilRun("error")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.metrics.RecordCouncilRun("complete")

	h.persistDeliberation(id, res)
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) listGroupChats(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.store.ListGroupChats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (h *Handler) createGroupChat(w http.ResponseWriter, r *http.Request) {
	var req CreateGroupChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if len(req.MemberIDs) == 0 {
		writeError(w, http.StatusBadRequest, "member_ids must not be empty")
		return
	}
	known := map[string]bool{}
	for _, adv := range h.roster.Current() {
		known[adv.ID] = true
	}
	for _, id := range req.MemberIDs {
		if !known[id] {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown advisor id %q", id))
			return
		}
	}

	sess, err := h.store.CreateGroupChat(uuid.NewString(), req.MemberIDs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (h *Handler) getGroupChat(w http.ResponseWriter, r *http.Request) {
	sess, err := h.store.GetGroupChat(r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "group chat not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *Handler) deleteGroupChat(w http.ResponseWriter, r *http.Request) {
	err := h.store.DeleteGroupChat(r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "group chat not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// sendGroupMessage asks every seated member in turn and returns their answers.
func (h *Handler) sendGroupMessage(w http.ResponseWriter, r *http.Request) {
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

	responses := h.engine.RunGroupChat(r.Context(), req.Content, h.members(sess.MemberIDs), sess.History())

	title := ""
	if len(sess.Messages) == 0 {
		title = h.applyGroupChatTitle(r.Context(), id, req.Content)
	}

	if err := h.store.AddGroupUserMessage(id, req.Content); err != nil {
		h.logger.Warn("persist group user message failed", zap.String("session", id), zap.Error(err))
	}
	if err := h.store.AddGroupAssistantMessage(id, responses); err != nil {
		h.logger.Warn("persist group responses failed", zap.String("session", id), zap.Error(err))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"responses": responses, "title": title})
}

// applyGroupChatTitle names a fresh session after its first question.
func (h *Handler) applyGroupChatTitle(ctx context.Context, sessionID, firstMessage string) string {
	title := h.engine.GenerateTitle(ctx, firstMessage)
	if err := h.store.UpdateGroupChatTitle(sessionID, title); err != nil {
		h.logger.Warn("persist group chat title failed", zap.String("session", sessionID), zap.Error(err))
	}
	return title
}

func (h *Handler) decodeMessage(w http.ResponseWriter, r *http.Request) (SendMessageRequest, bool) {
	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return req, false
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content must not be empty")
		return req, false
	}
	return req, true
}

// advisors converts the live roster into engine advisors.
func (h *Handler) advisors() []council.Advisor {
	current := h.roster.Current()
	out := make([]council.Advisor, 0, len(current))
	for _, adv := range current {
		out = append(out, council.Advisor{
			ID:          adv.ID,
			Name:        adv.Name,
			Model:       adv.Model,
			PromptFile:  adv.PromptFile,
			Description: adv.Description,
		})
	}
	return out
}

// members resolves session member ids against the live roster, preserving
// roster order. Unknown ids (seats removed since the session was created)
// are skipped.
func (h *Handler) members(memberIDs []string) []council.Advisor {
	wanted := map[string]bool{}
	for _, id := range memberIDs {
		wanted[id] = true
	}
	var out []council.Advisor
	for _, adv := range h.advisors() {
		if wanted[adv.ID] {
			out = append(out, adv)
		}
	}
	return out
}

// persistUserTurn records the question before the pipeline starts, so an
// errored deliberation still shows what was asked. Persistence failures
// degrade to warnings.
func (h *Handler) persistUserTurn(conversationID, question string) {
	if err := h.store.AddUserMessage(conversationID, question); err != nil {
		h.logger.Warn("persist user message failed", zap.String("conversation", conversationID), zap.Error(err))
	}
}

// persistDeliberation appends the deliberation record and applies a generated
// title. Persistence failures degrade to warnings so the client still
// receives the result.
func (h *Handler) persistDeliberation(conversationID string, res council.Result) {
	if err := h.store.AddAssistantMessage(conversationID, res); err != nil {
		h.logger.Warn("persist deliberation failed", zap.String("conversation", conversationID), zap.Error(err))
	}
	if res.Title != "" {
		if err := h.store.UpdateConversationTitle(conversationID, res.Title); err != nil {
			h.logger.Warn("persist title failed", zap.String("conversation", conversationID), zap.Error(err))
		}
	}
}
