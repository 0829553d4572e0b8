// Package detection scores message bodies against status signal
// phrases and picks the pipeline stage a conversation has reached.
package detection

import (
	"fmt"
	"sort"
	"strings"

	"github.com/plannerhq/vendorbook/pkg/domain"
	"github.com/plannerhq/vendorbook/pkg/mailbox"
	"github.com/plannerhq/vendorbook/pkg/signals"
)

const (
	baseScore      = 0.3
	perSignalScore = 0.15
	patternBonus   = 0.2
)

// Detection is the engine's verdict for one message.
type Detection struct {
	Status         domain.StatusDefinition
	Confidence     float64
	MatchedSignals []string
	Patterns       []string
	Reasoning      string
}

// Engine matches messages against status definitions. A single engine
// is safe for concurrent use.
type Engine struct {
	minConfidence float64
}

// NewEngine creates an engine that suppresses any detection scoring
// below minConfidence.
func NewEngine(minConfidence float64) *Engine {
	return &Engine{minConfidence: minConfidence}
}

// Detect scores msg against the given definitions and returns the
// strongest candidate at or above the confidence floor, or nil when no
// status clears it. history holds the thread's earlier messages in
// chronological order and only feeds the thread-pattern bonus. Disabled
// definitions never match.
func (e *Engine) Detect(msg mailbox.Message, history []mailbox.Message, defs []domain.StatusDefinition) *Detection {
	foldedBody := foldText(msg.Body)
	if strings.TrimSpace(foldedBody) == "" {
		return nil
	}

	var candidates []*Detection
	for _, def := range defs {
		if !def.IsEnabled {
			continue
		}

		phrases := def.InboundSignals
		if msg.Direction == mailbox.DirectionOutbound {
			phrases = def.OutboundSignals
		}

		matched := matchSignals(foldedBody, phrases)
		if len(matched) == 0 {
			continue
		}

		confidence := baseScore + perSignalScore*float64(len(matched))
		if confidence > 1 {
			confidence = 1
		}

		var applied []string
		for _, pattern := range def.ThreadPatterns {
			if patternHolds(pattern, msg, history, defs) {
				applied = append(applied, pattern)
			}
		}
		if len(applied) > 0 {
			confidence += patternBonus
			if confidence > 1 {
				confidence = 1
			}
		}

		candidates = append(candidates, &Detection{
			Status:         def,
			Confidence:     confidence,
			MatchedSignals: matched,
			Patterns:       applied,
			Reasoning:      buildReasoning(def, msg.Direction, matched, applied),
		})
	}

	if len(candidates) == 0 {
		return nil
	}

	// Highest confidence wins; on a tie the later pipeline stage does.
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Confidence != candidates[j].Confidence {
			return candidates[i].Confidence > candidates[j].Confidence
		}
		return candidates[i].Status.Order > candidates[j].Status.Order
	})

	best := candidates[0]
	if best.Confidence < e.minConfidence {
		return nil
	}
	return best
}

// patternHolds evaluates one thread-pattern token against the message's
// position in its thread.
func patternHolds(pattern string, msg mailbox.Message, history []mailbox.Message, defs []domain.StatusDefinition) bool {
	switch pattern {
	case signals.PatternFirstOutboundInquiry:
		if msg.Direction != mailbox.DirectionOutbound {
			return false
		}
		for _, prior := range history {
			if prior.Direction == mailbox.DirectionOutbound {
				return false
			}
		}
		return true

	case signals.PatternReplyToOutboundInquiry:
		if msg.Direction != mailbox.DirectionInbound {
			return false
		}
		// The most recent outbound message decides what this replies to.
		for i := len(history) - 1; i >= 0; i-- {
			if history[i].Direction != mailbox.DirectionOutbound {
				continue
			}
			return matchesInquirySignal(history[i].Body, defs)
		}
		return false
	}

	return false
}

// matchesInquirySignal reports whether a body carries an outbound
// signal of an inquiry-stage status, meaning one tagged with the
// first-outbound-inquiry pattern.
func matchesInquirySignal(body string, defs []domain.StatusDefinition) bool {
	folded := foldText(body)
	for _, def := range defs {
		if !hasPattern(def, signals.PatternFirstOutboundInquiry) {
			continue
		}
		if len(matchSignals(folded, def.OutboundSignals)) > 0 {
			return true
		}
	}
	return false
}

func hasPattern(def domain.StatusDefinition, pattern string) bool {
	for _, p := range def.ThreadPatterns {
		if p == pattern {
			return true
		}
	}
	return false
}

func buildReasoning(def domain.StatusDefinition, dir mailbox.Direction, matched, applied []string) string {
	quoted := make([]string, len(matched))
	for i, phrase := range matched {
		quoted[i] = fmt.Sprintf("%q", phrase)
	}

	reason := fmt.Sprintf("%s message matched %d %s signal(s): %s",
		dir, len(matched), def.Slug, strings.Join(quoted, ", "))

	for _, pattern := range applied {
		switch pattern {
		case signals.PatternFirstOutboundInquiry:
			reason += "; first outbound message in the thread"
		case signals.PatternReplyToOutboundInquiry:
			reason += "; reply to an outbound inquiry"
		}
	}

	return reason
}
