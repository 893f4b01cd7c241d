package crm

import "time"

// Factor names, in canonical application order. This order is fixed: the
// matrix applies factors in exactly this sequence so that repeated
// resolutions of the same input are bit-identical.
const (
	FactorAssociationHistory   = "association_history"
	FactorConflictMarkers      = "conflict_markers"
	FactorGoalAlignment        = "goal_alignment"
	FactorSituationContext     = "situation_context"
	FactorLinguisticIndicators = "linguistic_indicators"
	FactorSemanticCapacity     = "semantic_capacity"
	FactorSocialPropriety      = "social_propriety"
	FactorLocationContext      = "location_context"
	FactorTemporalContext      = "temporal_context"
	FactorUserProfile          = "user_profile"
	FactorProsodicFeatures     = "prosodic_features"
	FactorInputFidelity        = "input_fidelity"
)

// FactorOrder lists all twelve factors in application order.
var FactorOrder = []string{
	FactorAssociationHistory,
	FactorConflictMarkers,
	FactorGoalAlignment,
	FactorSituationContext,
	FactorLinguisticIndicators,
	FactorSemanticCapacity,
	FactorSocialPropriety,
	FactorLocationContext,
	FactorTemporalContext,
	FactorUserProfile,
	FactorProsodicFeatures,
	FactorInputFidelity,
}

// ContextSnapshot is the per-request, immutable bundle of the twelve
// optional context factors. Absence (nil slice, empty string, nil pointer)
// means "not applicable": the corresponding factor is skipped entirely,
// it is never treated as a neutral zero. This matters for the
// multiplicative and signed factors.
type ContextSnapshot struct {
	// AssociationHistory is the ordered sequence of recent intent ids,
	// most recent last.
	AssociationHistory []string `json:"association_history,omitempty"`

	// ConflictMarkers holds explicit opposition signals ("cancel", "no").
	ConflictMarkers []string `json:"conflict_markers,omitempty"`

	// GoalAlignment is the user's stated or inferred purpose.
	GoalAlignment string `json:"goal_alignment,omitempty"`

	// SituationContext is a high-level scenario tag ("cooking", "commute").
	SituationContext string `json:"situation_context,omitempty"`

	// LinguisticIndicators carries the detected speech act
	// ("question", "imperative").
	LinguisticIndicators string `json:"linguistic_indicators,omitempty"`

	// SemanticCapacity is the input richness in [0,1].
	SemanticCapacity *float64 `json:"semantic_capacity,omitempty"`

	// SocialPropriety is the register fit in [-1,1].
	SocialPropriety *float64 `json:"social_propriety,omitempty"`

	// LocationContext is the current location tag ("kitchen", "car").
	LocationContext string `json:"location_context,omitempty"`

	// TemporalContext is the request timestamp for time-of-day bucketing.
	TemporalContext *time.Time `json:"temporal_context,omitempty"`

	// UserProfile is a demographic or preference profile tag.
	UserProfile string `json:"user_profile,omitempty"`

	// ProsodicFeatures describes pitch/urgency ("rising", "flat").
	ProsodicFeatures string `json:"prosodic_features,omitempty"`

	// InputFidelity is the input clarity in [0,1]; lower means more
	// distorted input.
	InputFidelity *float64 `json:"input_fidelity,omitempty"`
}

// ActiveFactors returns the names of the factors present in this snapshot,
// in canonical factor order.
func (s ContextSnapshot) ActiveFactors() []string {
	var active []string
	for _, name := range FactorOrder {
		if s.has(name) {
			active = append(active, name)
		}
	}
	return active
}

func (s ContextSnapshot) has(factor string) bool {
	switch factor {
	case FactorAssociationHistory:
		return s.AssociationHistory != nil
	case FactorConflictMarkers:
		return s.ConflictMarkers != nil
	case FactorGoalAlignment:
		return s.GoalAlignment != ""
	case FactorSituationContext:
		return s.SituationContext != ""
	case FactorLinguisticIndicators:
		return s.LinguisticIndicators != ""
	case FactorSemanticCapacity:
		return s.SemanticCapacity != nil
	case FactorSocialPropriety:
		return s.SocialPropriety != nil
	case FactorLocationContext:
		return s.LocationContext != ""
	case FactorTemporalContext:
		return s.TemporalContext != nil
	case FactorUserProfile:
		return s.UserProfile != ""
	case FactorProsodicFeatures:
		return s.ProsodicFeatures != ""
	case FactorInputFidelity:
		return s.InputFidelity != nil
	}
	return false
}

// Sanitized returns a copy with out-of-range numeric factors clamped to
// their documented ranges. A malformed field never aborts a resolution.
func (s ContextSnapshot) Sanitized() ContextSnapshot {
	out := s
	if s.SemanticCapacity != nil {
		v := clamp01(*s.SemanticCapacity)
		out.SemanticCapacity = &v
	}
	if s.SocialPropriety != nil {
		v := clampRange(*s.SocialPropriety, -1, 1)
		out.SocialPropriety = &v
	}
	if s.InputFidelity != nil {
		v := clamp01(*s.InputFidelity)
		out.InputFidelity = &v
	}
	return out
}

func clamp01(v float64) float64 {
	return clampRange(v, 0, 1)
}

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
