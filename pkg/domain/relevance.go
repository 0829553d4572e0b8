package domain

import (
	"encoding/json"
	"fmt"
)

// RelevanceState distinguishes "not yet scored" from "scored and irrelevant".
type RelevanceState string

const (
	RelevanceUnknown     RelevanceState = "unknown"
	RelevanceRelevant    RelevanceState = "relevant"
	RelevanceNotRelevant RelevanceState = "not_relevant"
)

// Relevance is the scored relevance of a candidate. Confidence carries
// meaning only in the relevant state; the zero value is Unknown.
type Relevance struct {
	state      RelevanceState
	confidence float64
}

// UnknownRelevance returns the not-yet-scored state.
func UnknownRelevance() Relevance {
	return Relevance{state: RelevanceUnknown}
}

// Relevant returns a scored-relevant state with the given confidence,
// clamped to [0, 1].
func Relevant(confidence float64) Relevance {
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return Relevance{state: RelevanceRelevant, confidence: confidence}
}

// NotRelevant returns the scored-irrelevant state.
func NotRelevant() Relevance {
	return Relevance{state: RelevanceNotRelevant}
}

// RelevanceFrom rebuilds a Relevance from its stored parts.
func RelevanceFrom(state RelevanceState, confidence float64) (Relevance, error) {
	switch state {
	case "", RelevanceUnknown:
		return UnknownRelevance(), nil
	case RelevanceRelevant:
		return Relevant(confidence), nil
	case RelevanceNotRelevant:
		return NotRelevant(), nil
	default:
		return Relevance{}, fmt.Errorf("unknown relevance state %q", state)
	}
}

// State returns the tag.
func (r Relevance) State() RelevanceState {
	if r.state == "" {
		return RelevanceUnknown
	}
	return r.state
}

// Confidence returns the score and whether it is meaningful.
func (r Relevance) Confidence() (float64, bool) {
	if r.State() != RelevanceRelevant {
		return 0, false
	}
	return r.confidence, true
}

func (r Relevance) IsUnknown() bool     { return r.State() == RelevanceUnknown }
func (r Relevance) IsRelevant() bool    { return r.State() == RelevanceRelevant }
func (r Relevance) IsNotRelevant() bool { return r.State() == RelevanceNotRelevant }

type relevanceJSON struct {
	State      RelevanceState `json:"state"`
	Confidence *float64       `json:"confidence,omitempty"`
}

// MarshalJSON renders {"state":"relevant","confidence":0.92}; confidence is
// omitted outside the relevant state.
func (r Relevance) MarshalJSON() ([]byte, error) {
	out := relevanceJSON{State: r.State()}
	if conf, ok := r.Confidence(); ok {
		out.Confidence = &conf
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts the shape produced by MarshalJSON.
func (r *Relevance) UnmarshalJSON(data []byte) error {
	var in relevanceJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	conf := 0.0
	if in.Confidence != nil {
		conf = *in.Confidence
	}
	parsed, err := RelevanceFrom(in.State, conf)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
