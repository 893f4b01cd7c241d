// Package validator implements the second resolution stage: hard-stop
// elimination of contradicted candidates followed by context boosting
// through the resolution matrix, yielding a single verified intent or the
// uncertainty fallback.
package validator

import (
	"sort"
	"strings"

	"github.com/intentd/intentd/engine/catalog"
	"github.com/intentd/intentd/engine/crm"
	"github.com/intentd/intentd/engine/retriever"
)

// Fallback reasons.
const (
	ReasonNoSemanticCandidates = "no_semantic_candidates"
	ReasonLowConfidence        = "low_confidence"
	ReasonStage2Failed         = "stage_2_failed"
)

// Hard-stop rules.
const (
	RuleConflictOpposition = "conflict_opposition"
	RuleLocationMismatch   = "location_mismatch"
	RuleProfileMismatch    = "profile_mismatch"
)

// Discard records one hard-stopped candidate and the rule that removed it.
type Discard struct {
	IntentID string `json:"intent_id"`
	Rule     string `json:"rule"`
}

// VerifiedIntent is the outcome of Stage 2.
type VerifiedIntent struct {
	Intent *catalog.Intent

	// Score is the final matrix-adjusted score of the winner. Zero when
	// the resolution fell back.
	Score float64

	// Similarity is the winner's pre-boost Stage 1 similarity.
	Similarity float32

	// Source is the winning candidate's origin ("retrieval" or "memory").
	Source string

	// ExemplarID is set when the winner came from Fast Memory.
	ExemplarID string

	Confidence     float64
	Fallback       bool
	FallbackReason string

	Discarded []Discard
	Matrix    *crm.Result
}

// Validator applies hard stops and the resolution matrix to Stage 1
// candidates. Safe for concurrent use.
type Validator struct {
	matrix    *crm.Matrix
	threshold float64
}

// New creates a validator. threshold is the minimum winning score below
// which the resolution falls back to uncertainty.
func New(matrix *crm.Matrix, threshold float64) *Validator {
	return &Validator{matrix: matrix, threshold: threshold}
}

// Verify resolves the candidate set against the context snapshot.
// Verification never errors: every failure mode degrades to the
// uncertainty fallback with a reason.
func (v *Validator) Verify(candidates []retriever.Candidate, snap crm.ContextSnapshot) *VerifiedIntent {
	if len(candidates) == 0 {
		return fallback(ReasonNoSemanticCandidates, nil, nil)
	}

	snap = snap.Sanitized()
	survivors, discarded := v.hardStop(candidates, snap)
	if len(survivors) == 0 {
		return fallback(ReasonStage2Failed, discarded, nil)
	}

	base := make(map[string]float64, len(survivors))
	traits := make(map[string]crm.IntentTraits, len(survivors))
	byID := make(map[string]retriever.Candidate, len(survivors))
	for _, c := range survivors {
		base[c.Intent.ID] = float64(c.Similarity)
		traits[c.Intent.ID] = crm.IntentTraits{
			Keywords:         c.Intent.Keywords,
			RequiredLocation: c.Intent.Required.Location,
			RequiredProfile:  c.Intent.Required.Profile,
		}
		byID[c.Intent.ID] = c
	}

	result := v.matrix.Resolve(base, traits, snap)

	winnerID := pickWinner(result.Scores, byID)
	winner := byID[winnerID]
	score := result.Scores[winnerID]

	if score < v.threshold {
		out := fallback(ReasonLowConfidence, discarded, result)
		out.Confidence = result.Confidence
		return out
	}

	return &VerifiedIntent{
		Intent:     winner.Intent,
		Score:      score,
		Similarity: winner.Similarity,
		Source:     winner.Source,
		ExemplarID: winner.ExemplarID,
		Confidence: result.Confidence,
		Discarded:  discarded,
		Matrix:     result,
	}
}

// Threshold returns the configured fallback threshold.
func (v *Validator) Threshold() float64 {
	return v.threshold
}

// hardStop removes candidates the context outright contradicts. A location
// or profile requirement is enforced only when flagged mandatory AND the
// context actually supplies a conflicting value: an absent factor cannot
// contradict anything.
func (v *Validator) hardStop(candidates []retriever.Candidate, snap crm.ContextSnapshot) (survivors []retriever.Candidate, discarded []Discard) {
	for _, c := range candidates {
		if rule := hardStopRule(c.Intent, snap); rule != "" {
			discarded = append(discarded, Discard{IntentID: c.Intent.ID, Rule: rule})
			continue
		}
		survivors = append(survivors, c)
	}
	return survivors, discarded
}

func hardStopRule(intent *catalog.Intent, snap crm.ContextSnapshot) string {
	for _, marker := range snap.ConflictMarkers {
		if crm.ConflictOpposes(marker, intent.ID, intent.Keywords) {
			return RuleConflictOpposition
		}
	}
	if intent.Required.LocationRequired &&
		snap.LocationContext != "" &&
		!strings.EqualFold(intent.Required.Location, snap.LocationContext) {
		return RuleLocationMismatch
	}
	if intent.Required.ProfileRequired &&
		snap.UserProfile != "" &&
		!strings.EqualFold(intent.Required.Profile, snap.UserProfile) {
		return RuleProfileMismatch
	}
	return ""
}

// pickWinner selects the highest boosted score; ties fall back to the
// higher pre-boost similarity, then to catalog order.
func pickWinner(scores map[string]float64, byID map[string]retriever.Candidate) string {
	ids := make([]string, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := ids[i], ids[j]
		if scores[a] != scores[b] {
			return scores[a] > scores[b]
		}
		if byID[a].Similarity != byID[b].Similarity {
			return byID[a].Similarity > byID[b].Similarity
		}
		return byID[a].Intent.Ordinal < byID[b].Intent.Ordinal
	})
	return ids[0]
}

func fallback(reason string, discarded []Discard, result *crm.Result) *VerifiedIntent {
	return &VerifiedIntent{
		Intent:         catalog.UncertainIntent(),
		Fallback:       true,
		FallbackReason: reason,
		Discarded:      discarded,
		Matrix:         result,
	}
}
