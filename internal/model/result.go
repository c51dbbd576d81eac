package model

// PipelineState is a step of the per-email state machine.
type PipelineState string

const (
	StateCreated         PipelineState = "created"
	StateNormalized      PipelineState = "normalized"
	StateResearchedLoop1 PipelineState = "researched_loop1"
	StateAnalyzed        PipelineState = "analyzed"
	StateResearchedLoop2 PipelineState = "researched_loop2"
	StateComposed        PipelineState = "composed"
	StateReady           PipelineState = "ready"
	StateFailed          PipelineState = "failed"
)

// TokenUsage tracks text generation consumption for one run.
type TokenUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
	Calls        int   `json:"calls"`
}

// Add accumulates u2 into u.
func (u *TokenUsage) Add(u2 TokenUsage) {
	u.InputTokens += u2.InputTokens
	u.OutputTokens += u2.OutputTokens
	u.Calls += u2.Calls
}

// RunResult is the typed outcome of one pipeline run.
type RunResult struct {
	RunID         string           `json:"run_id"`
	EmailID       string           `json:"email_id"`
	ContentHash   string           `json:"content_hash"`
	Record        *InterviewRecord `json:"record,omitempty"`
	State         PipelineState    `json:"state"`
	Transitions   []PipelineState  `json:"transitions"`
	Status        RecordStatus     `json:"status"`
	Reason        string           `json:"reason,omitempty"`
	Deduplicated  bool             `json:"deduplicated"`
	Loop1         LoopStats        `json:"loop1"`
	Loop2         *LoopStats       `json:"loop2,omitempty"`
	GapsBefore    []GapCategory    `json:"gaps_before"`
	GapsAfter     []GapCategory    `json:"gaps_after"`
	GapsResolved  int              `json:"gaps_resolved"`
	Confidence    float64          `json:"confidence"`
	Document      *Document        `json:"document,omitempty"`
	OutputPath    string           `json:"output_path,omitempty"`
	SearchCalls   int              `json:"search_calls"`
	TokenUsage    TokenUsage       `json:"token_usage"`
	EstimatedCost float64          `json:"estimated_cost_usd"`
	DurationMs    int64            `json:"duration_ms"`
}

// Enter appends a state transition.
func (r *RunResult) Enter(s PipelineState) {
	r.State = s
	r.Transitions = append(r.Transitions, s)
}
