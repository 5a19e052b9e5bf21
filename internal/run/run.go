package run

import (
	"strings"
	"time"
)

// Phase identifies one ordered stage of the content pipeline.
type Phase string

const (
	PhaseOrchestrate Phase = "orchestrate"
	PhaseCopywriter  Phase = "copywriter"
	PhaseImage       Phase = "image"
	PhasePublish     Phase = "publish"
)

// Status represents the lifecycle of a phase within a run.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var phaseOrder = []Phase{
	PhaseOrchestrate,
	PhaseCopywriter,
	PhaseImage,
	PhasePublish,
}

var phaseRank = func() map[Phase]int {
	ranks := make(map[Phase]int, len(phaseOrder))
	for i, phase := range phaseOrder {
		ranks[phase] = i
	}
	return ranks
}()

var statusSet = map[Status]struct{}{
	StatusPending:    {},
	StatusInProgress: {},
	StatusCompleted:  {},
	StatusFailed:     {},
}

// Phases returns the ordered list of pipeline phases.
func Phases() []Phase {
	cp := make([]Phase, len(phaseOrder))
	copy(cp, phaseOrder)
	return cp
}

// ParsePhase converts a string into a known Phase.
func ParsePhase(value string) (Phase, bool) {
	normalized := Phase(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := phaseRank[normalized]
	return normalized, ok
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Rank returns the position of the phase in the fixed pipeline order.
// Unknown phases rank after every known phase.
func (p Phase) Rank() int {
	if rank, ok := phaseRank[p]; ok {
		return rank
	}
	return len(phaseOrder)
}

// Before reports whether p precedes other in the pipeline order.
func (p Phase) Before(other Phase) bool {
	return p.Rank() < other.Rank()
}

// Next returns the phase that follows p. Image is skipped when the plan
// requests text-only media.
func (p Phase) Next(textOnly bool) (Phase, bool) {
	switch p {
	case PhaseOrchestrate:
		return PhaseCopywriter, true
	case PhaseCopywriter:
		if textOnly {
			return PhasePublish, true
		}
		return PhaseImage, true
	case PhaseImage:
		return PhasePublish, true
	default:
		return "", false
	}
}

// Terminal reports whether the status ends a phase's lifecycle.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Event is one entry of a run's append-only audit trail.
type Event struct {
	TS      time.Time      `json:"ts"`
	Phase   Phase          `json:"phase"`
	Action  string         `json:"action"`
	Message string         `json:"message,omitempty"`
	Status  Status         `json:"status,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// RunState is the durable record tracking one pipeline run.
type RunState struct {
	RunTraceID    string         `json:"runTraceId"`
	CurrentPhase  Phase          `json:"currentPhase"`
	Status        Status         `json:"status"`
	IsComplete    bool           `json:"isComplete"`
	BrandID       string         `json:"brandId,omitempty"`
	PostPlanID    string         `json:"postPlanId,omitempty"`
	Summary       map[string]any `json:"summary,omitempty"`
	LastUpdateUtc time.Time      `json:"lastUpdateUtc"`
	Events        []Event        `json:"events,omitempty"`
}

// Complete reports whether the given phase/status pair represents a finished run.
func Complete(phase Phase, status Status) bool {
	return phase == PhasePublish && status == StatusCompleted
}
