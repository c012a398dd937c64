package api

import (
	"encoding/json"
	"net/http"

	"github.com/quorumlabs/quorum/internal/config"
	"github.com/quorumlabs/quorum/internal/observability"
)

// SendMessageRequest is the body for message endpoints.
type SendMessageRequest struct {
	Content string `json:"content"`
}

// CreateGroupChatRequest selects the roster members seated in a new group chat.
type CreateGroupChatRequest struct {
	MemberIDs []string `json:"member_ids"`
}

// CouncilConfigResponse describes the current roster and chairman.
type CouncilConfigResponse struct {
	Advisors []config.AdvisorConfig `json:"advisors"`
	Chairman string                 `json:"chairman"`
}

// UpdateCouncilConfigRequest replaces the advisor roster.
type UpdateCouncilConfigRequest struct {
	Advisors []config.AdvisorConfig `json:"advisors"`
}

// ModelsResponse lists the logical models the gateway can route.
type ModelsResponse struct {
	Models       []string `json:"models"`
	DefaultModel string   `json:"default_model"`
}

// MonitoringResponse is a snapshot of the local model runtime.
type MonitoringResponse struct {
	Ollama observability.RuntimeStatus `json:"ollama"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
