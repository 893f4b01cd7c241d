// Package crm implements the Context Resolution Matrix: a deterministic
// scorer that adjusts candidate intent scores across twelve weighted
// context factors and reports per-factor contributions for transparency.
package crm

import (
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// ErrInvalidWeight marks a negative factor weight at construction time.
var ErrInvalidWeight = errors.New("factor weight cannot be negative")

// DefaultWeights returns the documented default weight per factor.
// Weights do not need to sum to 1: factors reinforce each other.
func DefaultWeights() map[string]float64 {
	return map[string]float64{
		FactorAssociationHistory:   0.15,
		FactorConflictMarkers:      0.10,
		FactorGoalAlignment:        0.20,
		FactorSituationContext:     0.15,
		FactorLinguisticIndicators: 0.08,
		FactorSemanticCapacity:     0.12,
		FactorSocialPropriety:      0.10,
		FactorLocationContext:      0.18,
		FactorTemporalContext:      0.15,
		FactorUserProfile:          0.12,
		FactorProsodicFeatures:     0.08,
		FactorInputFidelity:        0.07,
	}
}

// IntentTraits carries the scorable attributes of one candidate intent.
type IntentTraits struct {
	Keywords         []string
	RequiredLocation string
	RequiredProfile  string
}

// Result is the outcome of one matrix pass.
type Result struct {
	// Scores maps intent id to the resolved score, clamped to [0,1].
	Scores map[string]float64

	// Deltas maps intent id to resolved minus base score.
	Deltas map[string]float64

	// ActiveFactors lists the factors that were present, in canonical order.
	ActiveFactors []string

	// Confidence estimates the overall resolution quality: it rewards both
	// contextual coverage (active factor count) and decisiveness (mean
	// absolute delta).
	Confidence float64

	// Contributions maps factor name -> intent id -> signed delta applied
	// by that factor, so callers can reconstruct why a score changed.
	Contributions map[string]map[string]float64
}

// Matrix is the immutable 12-factor scorer. Safe for concurrent use.
type Matrix struct {
	weights map[string]float64
}

// New builds a matrix with the given weight overrides. Nil or missing
// entries fall back to the defaults. A negative weight fails with
// ErrInvalidWeight; an unknown factor name is logged and ignored.
func New(weights map[string]float64) (*Matrix, error) {
	merged := DefaultWeights()
	for name, w := range weights {
		if _, known := merged[name]; !known {
			slog.Warn("ignoring unknown context factor", "factor", name)
			continue
		}
		if w < 0 {
			return nil, errors.Wrapf(ErrInvalidWeight, "%s=%v", name, w)
		}
		merged[name] = w
	}
	return &Matrix{weights: merged}, nil
}

// Weight returns the configured weight for a factor.
func (m *Matrix) Weight(factor string) float64 {
	return m.weights[factor]
}

// Weights returns a copy of the full weight table.
func (m *Matrix) Weights() map[string]float64 {
	out := make(map[string]float64, len(m.weights))
	for k, v := range m.weights {
		out[k] = v
	}
	return out
}

// Resolve applies every present factor to the base scores and returns the
// resolved scores with full diagnostics. Absent snapshot fields are no-ops,
// not zero-adjustments. The call is a pure function of its arguments:
// factors apply in canonical order and all iteration is over sorted ids.
func (m *Matrix) Resolve(base map[string]float64, traits map[string]IntentTraits, snap ContextSnapshot) *Result {
	snap = snap.Sanitized()
	ids := sortedIDs(base)

	scores := make(map[string]float64, len(base))
	for id, s := range base {
		scores[id] = clamp01(s)
	}

	contributions := make(map[string]map[string]float64)
	record := func(factor, id string, delta float64) {
		if delta == 0 {
			return
		}
		if contributions[factor] == nil {
			contributions[factor] = make(map[string]float64)
		}
		contributions[factor][id] += delta
		scores[id] += delta
	}

	for _, factor := range FactorOrder {
		if !snap.has(factor) {
			continue
		}
		weight := m.weights[factor]
		for _, id := range ids {
			tr := traits[id]
			switch factor {
			case FactorAssociationHistory:
				record(factor, id, associationDelta(id, tr, snap.AssociationHistory, weight))
			case FactorConflictMarkers:
				record(factor, id, conflictDelta(id, tr, snap.ConflictMarkers, weight))
			case FactorGoalAlignment:
				record(factor, id, goalDelta(id, tr, snap.GoalAlignment, weight))
			case FactorSituationContext:
				record(factor, id, rulebookDelta(id, tr, situationIntents, snap.SituationContext, weight))
			case FactorLinguisticIndicators:
				record(factor, id, rulebookDelta(id, tr, speechActIntents, snap.LinguisticIndicators, weight))
			case FactorSemanticCapacity:
				// Multiplicative: richer input scales the whole score.
				record(factor, id, scores[id]*weight*(*snap.SemanticCapacity))
			case FactorSocialPropriety:
				record(factor, id, weight*(*snap.SocialPropriety))
			case FactorLocationContext:
				record(factor, id, locationDelta(id, tr, snap.LocationContext, weight))
			case FactorTemporalContext:
				record(factor, id, rulebookDelta(id, tr, timeBucketIntents, TimeOfDayBucket(*snap.TemporalContext), weight))
			case FactorUserProfile:
				record(factor, id, profileDelta(id, tr, snap.UserProfile, weight))
			case FactorProsodicFeatures:
				record(factor, id, rulebookDelta(id, tr, prosodyIntents, snap.ProsodicFeatures, weight))
			case FactorInputFidelity:
				record(factor, id, -weight*(1-*snap.InputFidelity))
			}
		}
	}

	deltas := make(map[string]float64, len(base))
	var absSum float64
	for _, id := range ids {
		scores[id] = clamp01(scores[id])
		deltas[id] = scores[id] - clamp01(base[id])
		absSum += math.Abs(deltas[id])
	}

	active := snap.ActiveFactors()
	return &Result{
		Scores:        scores,
		Deltas:        deltas,
		ActiveFactors: active,
		Confidence:    estimateConfidence(len(active), absSum, len(ids)),
		Contributions: contributions,
	}
}

// estimateConfidence combines contextual coverage with decisiveness:
// 0.6 * min(1, factors/6) + 0.4 * min(1, mean |delta|).
func estimateConfidence(activeFactors int, absDeltaSum float64, intentCount int) float64 {
	factorConfidence := math.Min(1, float64(activeFactors)/6)
	var deltaConfidence float64
	if intentCount > 0 {
		deltaConfidence = math.Min(1, absDeltaSum/float64(intentCount))
	}
	return 0.6*factorConfidence + 0.4*deltaConfidence
}

func associationDelta(id string, tr IntentTraits, history []string, weight float64) float64 {
	var delta float64
	for _, recent := range history {
		recentLower := strings.ToLower(recent)
		for topic, keywords := range associationPatterns {
			if !strings.Contains(recentLower, topic) {
				continue
			}
			if matchesAny(id, tr.Keywords, keywords) {
				delta += weight
			}
		}
	}
	return delta
}

func conflictDelta(id string, tr IntentTraits, markers []string, weight float64) float64 {
	var delta float64
	for _, marker := range markers {
		if ConflictOpposes(marker, id, tr.Keywords) {
			delta -= weight
		}
	}
	return delta
}

func goalDelta(id string, tr IntentTraits, goal string, weight float64) float64 {
	goalLower := strings.ToLower(strings.TrimSpace(goal))
	if keywords, ok := goalGroups[goalLower]; ok {
		if matchesAny(id, tr.Keywords, keywords) {
			return weight
		}
		return 0
	}
	// Unknown goal group: fall back to a partial direct match on the goal
	// string itself, at half weight.
	if goalLower != "" && matchesAny(id, tr.Keywords, []string{goalLower}) {
		return weight * 0.5
	}
	return 0
}

// locationDelta prefers a declared location requirement over the generic
// rulebook: a declared location earns the full boost on match and a penalty
// on mismatch. Hard enforcement of a mismatch is Stage 2's job, and only
// when the requirement is flagged mandatory.
func locationDelta(id string, tr IntentTraits, location string, weight float64) float64 {
	if tr.RequiredLocation != "" {
		if strings.EqualFold(tr.RequiredLocation, location) {
			return weight
		}
		return -0.75 * weight
	}
	return rulebookDelta(id, tr, locationIntents, location, weight)
}

func profileDelta(id string, tr IntentTraits, profile string, weight float64) float64 {
	if tr.RequiredProfile != "" {
		if strings.EqualFold(tr.RequiredProfile, profile) {
			return weight
		}
		return -0.4 * weight
	}
	return rulebookDelta(id, tr, userPreferences, profile, weight)
}

func rulebookDelta(id string, tr IntentTraits, rulebook map[string][]string, key string, weight float64) float64 {
	keywords, ok := rulebook[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return 0
	}
	if matchesAny(id, tr.Keywords, keywords) {
		return weight
	}
	return 0
}

// Mover is one entry of a ranked contribution listing.
type Mover struct {
	IntentID string  `json:"intent_id"`
	Delta    float64 `json:"delta"`
}

// TopMovers splits the result's deltas into the largest boosts and the
// largest penalties, each sorted by magnitude then id for determinism.
func (r *Result) TopMovers(limit int) (boosts, penalties []Mover) {
	for _, id := range sortedIDs(r.Deltas) {
		d := r.Deltas[id]
		switch {
		case d > 0:
			boosts = append(boosts, Mover{IntentID: id, Delta: d})
		case d < 0:
			penalties = append(penalties, Mover{IntentID: id, Delta: d})
		}
	}
	sort.SliceStable(boosts, func(i, j int) bool { return boosts[i].Delta > boosts[j].Delta })
	sort.SliceStable(penalties, func(i, j int) bool { return penalties[i].Delta < penalties[j].Delta })
	if limit > 0 && len(boosts) > limit {
		boosts = boosts[:limit]
	}
	if limit > 0 && len(penalties) > limit {
		penalties = penalties[:limit]
	}
	return boosts, penalties
}

func sortedIDs(scores map[string]float64) []string {
	ids := make([]string, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
