package council

import "encoding/json"

// Advisor is one seated council member: a persona bound to a logical model.
type Advisor struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Model       string `json:"model"`
	PromptFile  string `json:"prompt_file,omitempty"`
	Description string `json:"description,omitempty"`
}

// AdvisorResponse is one advisor's stage-1 answer. Model carries the roster
// identity (the advisor name), which is unique even when seats share a model.
type AdvisorResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
}

// RankingEntry is one advisor's stage-2 review. ParsedRanking is empty when
// the response did not follow the ranking protocol; that is a degraded state,
// not an error.
type RankingEntry struct {
	Model         string   `json:"model"`
	Ranking       string   `json:"ranking"`
	ParsedRanking []string `json:"parsed_ranking"`
}

// AggregateRankingEntry is the mean rank a model received across reviewers.
type AggregateRankingEntry struct {
	Model       string  `json:"model"`
	AverageRank float64 `json:"average_rank"`
	Votes       int     `json:"votes"`
}

// SynthesisResult is the chairman's stage-3 answer.
type SynthesisResult struct {
	Model    string `json:"model"`
	Response string `json:"response"`
}

// Result bundles the output of one full deliberation.
type Result struct {
	Stage1       []AdvisorResponse       `json:"stage1"`
	Stage2       []RankingEntry          `json:"stage2"`
	LabelToModel map[string]string       `json:"label_to_model"`
	Aggregate    []AggregateRankingEntry `json:"aggregate_rankings"`
	Stage3       SynthesisResult         `json:"stage3"`
	Title        string                  `json:"title,omitempty"`
}

// State tracks pipeline progress across one deliberation.
type State string

const (
	StateNotStarted    State = "not_started"
	StateStage1Running State = "stage1_running"
	StateStage1Done    State = "stage1_done"
	StateStage2Running State = "stage2_running"
	StateStage2Done    State = "stage2_done"
	StateStage3Running State = "stage3_running"
	StateComplete      State = "complete"
	StateErrored       State = "errored"
)

// EventType identifies a pipeline progress event.
type EventType string

const (
	EventStage1Start        EventType = "stage1_start"
	EventStage1Complete     EventType = "stage1_complete"
	EventStage2Start        EventType = "stage2_start"
	EventStage2Complete     EventType = "stage2_complete"
	EventStage3Start        EventType = "stage3_start"
	EventStage3Complete     EventType = "stage3_complete"
	EventTitleComplete      EventType = "title_complete"
	EventResponsesStart     EventType = "responses_start"
	EventResponsesComplete  EventType = "responses_complete"
	EventComplete           EventType = "complete"
	EventError              EventType = "error"
)

// Event is one externally observable pipeline checkpoint. Only the fields
// relevant to the event type are populated.
type Event struct {
	Type         EventType               `json:"type"`
	Responses    []AdvisorResponse       `json:"responses,omitempty"`
	Rankings     []RankingEntry          `json:"rankings,omitempty"`
	LabelToModel map[string]string       `json:"label_to_model,omitempty"`
	Aggregate    []AggregateRankingEntry `json:"aggregate_rankings,omitempty"`
	Synthesis    *SynthesisResult        `json:"synthesis,omitempty"`
	Group        []GroupChatResponse     `json:"group_responses,omitempty"`
	Title        string                  `json:"title,omitempty"`
	Error        string                  `json:"error,omitempty"`
}

// GroupChatResponse is one member's answer in a group chat turn.
type GroupChatResponse struct {
	AdvisorID   string `json:"advisor_id"`
	AdvisorName string `json:"advisor_name"`
	Model       string `json:"model"`
	Response    string `json:"response"`
}

// HistoryMessage is a prior group chat turn used to build conversation context.
type HistoryMessage struct {
	Role      string              `json:"role"`
	Content   string              `json:"content,omitempty"`
	Responses []GroupChatResponse `json:"responses,omitempty"`
}

// LabelMap is the per-deliberation bijection between anonymized labels and
// roster identities. Labels are assigned in stage-1 output order; that order
// is also the tie-break for rank aggregation.
type LabelMap struct {
	labels []string
	models map[string]string
}

// NewLabelMap assigns sequential labels to stage-1 responses in order.
func NewLabelMap(stage1 []AdvisorResponse) LabelMap {
	m := LabelMap{
		labels: make([]string, 0, len(stage1)),
		models: make(map[string]string, len(stage1)),
	}
	for i, resp := range stage1 {
		label := labelFor(i)
		m.labels = append(m.labels, label)
		m.models[label] = resp.Model
	}
	return m
}

// Model resolves a label back to its roster identity.
func (m LabelMap) Model(label string) (string, bool) {
	model, ok := m.models[label]
	return model, ok
}

// Labels returns the labels in assignment order.
func (m LabelMap) Labels() []string {
	out := make([]string, len(m.labels))
	copy(out, m.labels)
	return out
}

// Len reports the number of labeled responses.
func (m LabelMap) Len() int {
	return len(m.labels)
}

// Mapping returns a label-to-model copy for event payloads.
func (m LabelMap) Mapping() map[string]string {
	out := make(map[string]string, len(m.models))
	for k, v := range m.models {
		out[k] = v
	}
	return out
}

// MarshalJSON renders the map as a plain label-to-model object.
func (m LabelMap) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.models)
}

// labelFor produces "Response A", "Response B", ... continuing with
// "Response AA" past 26 entries.
func labelFor(i int) string {
	s := ""
	n := i
	for {
		s = string(rune('A'+n%26)) + s
		n = n/26 - 1
		if n < 0 {
			break
		}
	}
	return "Response " + s
}
