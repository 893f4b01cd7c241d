package crm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64 { return &v }

func TestNewRejectsNegativeWeight(t *testing.T) {
	_, err := New(map[string]float64{FactorGoalAlignment: -0.1})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidWeight)
}

func TestNewIgnoresUnknownFactor(t *testing.T) {
	m, err := New(map[string]float64{"astrology": 0.5})
	require.NoError(t, err)
	assert.Equal(t, DefaultWeights()[FactorGoalAlignment], m.Weight(FactorGoalAlignment))
}

func TestNewAppliesOverrides(t *testing.T) {
	m, err := New(map[string]float64{FactorGoalAlignment: 0.42})
	require.NoError(t, err)
	assert.InDelta(t, 0.42, m.Weight(FactorGoalAlignment), 1e-9)
	// Untouched factors keep their defaults.
	assert.InDelta(t, 0.18, m.Weight(FactorLocationContext), 1e-9)
}

func TestResolveEmptySnapshotIsIdentity(t *testing.T) {
	m, err := New(nil)
	require.NoError(t, err)

	base := map[string]float64{"set_timer": 0.7, "play_music": 0.5}
	result := m.Resolve(base, nil, ContextSnapshot{})

	assert.Empty(t, result.ActiveFactors)
	for id, score := range base {
		assert.InDelta(t, score, result.Scores[id], 1e-9)
		assert.InDelta(t, 0, result.Deltas[id], 1e-9)
	}
	assert.InDelta(t, 0, result.Confidence, 1e-9)
}

func TestResolveGoalAlignmentBoost(t *testing.T) {
	m, err := New(nil)
	require.NoError(t, err)

	base := map[string]float64{"play_music": 0.5, "send_email": 0.5}
	traits := map[string]IntentTraits{
		"play_music": {Keywords: []string{"music", "play"}},
		"send_email": {Keywords: []string{"email", "send"}},
	}
	result := m.Resolve(base, traits, ContextSnapshot{GoalAlignment: "entertainment"})

	assert.InDelta(t, 0.5+0.20, result.Scores["play_music"], 1e-9)
	assert.InDelta(t, 0.5, result.Scores["send_email"], 1e-9)
	assert.Equal(t, []string{FactorGoalAlignment}, result.ActiveFactors)
}

func TestResolveConflictPenalty(t *testing.T) {
	m, err := New(nil)
	require.NoError(t, err)

	base := map[string]float64{"set_timer": 0.6, "cancel_timer": 0.6}
	traits := map[string]IntentTraits{
		"set_timer":    {Keywords: []string{"timer", "set", "start"}},
		"cancel_timer": {Keywords: []string{"timer", "cancel"}},
	}
	result := m.Resolve(base, traits, ContextSnapshot{ConflictMarkers: []string{"cancel"}})

	assert.InDelta(t, 0.6-0.10, result.Scores["set_timer"], 1e-9)
	assert.InDelta(t, 0.6, result.Scores["cancel_timer"], 1e-9)
}

func TestResolveSemanticCapacityIsMultiplicative(t *testing.T) {
	m, err := New(nil)
	require.NoError(t, err)

	base := map[string]float64{"a": 0.5, "b": 0.2}
	result := m.Resolve(base, nil, ContextSnapshot{SemanticCapacity: floatPtr(1.0)})

	// score *= 1 + w*capacity with w = 0.12.
	assert.InDelta(t, 0.5*1.12, result.Scores["a"], 1e-9)
	assert.InDelta(t, 0.2*1.12, result.Scores["b"], 1e-9)
}

func TestResolveInputFidelityPenalty(t *testing.T) {
	m, err := New(nil)
	require.NoError(t, err)

	base := map[string]float64{"a": 0.5}
	result := m.Resolve(base, nil, ContextSnapshot{InputFidelity: floatPtr(0.0)})

	// Full distortion costs the full fidelity weight.
	assert.InDelta(t, 0.5-0.07, result.Scores["a"], 1e-9)
}

func TestResolveSocialProprietyIsSigned(t *testing.T) {
	m, err := New(nil)
	require.NoError(t, err)

	base := map[string]float64{"a": 0.5}
	up := m.Resolve(base, nil, ContextSnapshot{SocialPropriety: floatPtr(1.0)})
	down := m.Resolve(base, nil, ContextSnapshot{SocialPropriety: floatPtr(-1.0)})

	assert.InDelta(t, 0.6, up.Scores["a"], 1e-9)
	assert.InDelta(t, 0.4, down.Scores["a"], 1e-9)
}

func TestResolveLocationRequirement(t *testing.T) {
	m, err := New(nil)
	require.NoError(t, err)

	base := map[string]float64{"preheat_oven": 0.5}
	traits := map[string]IntentTraits{
		"preheat_oven": {RequiredLocation: "kitchen"},
	}

	match := m.Resolve(base, traits, ContextSnapshot{LocationContext: "kitchen"})
	assert.InDelta(t, 0.5+0.18, match.Scores["preheat_oven"], 1e-9)

	mismatch := m.Resolve(base, traits, ContextSnapshot{LocationContext: "car"})
	assert.InDelta(t, 0.5-0.75*0.18, mismatch.Scores["preheat_oven"], 1e-9)
}

func TestResolveTemporalBucketBoost(t *testing.T) {
	m, err := New(nil)
	require.NoError(t, err)

	morning := time.Date(2026, 3, 10, 5, 30, 0, 0, time.UTC)
	base := map[string]float64{"check_weather": 0.5, "play_music": 0.5}
	traits := map[string]IntentTraits{
		"check_weather": {Keywords: []string{"weather", "news"}},
		"play_music":    {Keywords: []string{"music"}},
	}
	result := m.Resolve(base, traits, ContextSnapshot{TemporalContext: &morning})

	assert.Greater(t, result.Scores["check_weather"], result.Scores["play_music"])
}

func TestResolveScoresAreClamped(t *testing.T) {
	m, err := New(nil)
	require.NoError(t, err)

	base := map[string]float64{"play_music": 0.95}
	traits := map[string]IntentTraits{
		"play_music": {Keywords: []string{"music", "play", "song"}},
	}
	snap := ContextSnapshot{
		GoalAlignment:    "entertainment",
		SituationContext: "party",
		SocialPropriety:  floatPtr(1.0),
	}
	result := m.Resolve(base, traits, snap)
	assert.LessOrEqual(t, result.Scores["play_music"], 1.0)
}

func TestResolveSanitizesOutOfRangeFactors(t *testing.T) {
	m, err := New(nil)
	require.NoError(t, err)

	base := map[string]float64{"a": 0.5}
	result := m.Resolve(base, nil, ContextSnapshot{SemanticCapacity: floatPtr(7.0)})

	// Capacity clamps to 1 before applying.
	assert.InDelta(t, 0.5*1.12, result.Scores["a"], 1e-9)
}

func TestResolveIsDeterministic(t *testing.T) {
	m, err := New(nil)
	require.NoError(t, err)

	base := map[string]float64{"a": 0.4, "b": 0.4, "c": 0.4}
	traits := map[string]IntentTraits{
		"a": {Keywords: []string{"music"}},
		"b": {Keywords: []string{"timer"}},
		"c": {Keywords: []string{"email"}},
	}
	now := time.Date(2026, 3, 10, 19, 0, 0, 0, time.UTC)
	snap := ContextSnapshot{
		AssociationHistory: []string{"cooking_recipe"},
		GoalAlignment:      "entertainment",
		SituationContext:   "relaxing",
		TemporalContext:    &now,
		SemanticCapacity:   floatPtr(0.5),
		InputFidelity:      floatPtr(0.9),
	}

	first := m.Resolve(base, traits, snap)
	for i := 0; i < 10; i++ {
		again := m.Resolve(base, traits, snap)
		assert.Equal(t, first.Scores, again.Scores)
		assert.Equal(t, first.Deltas, again.Deltas)
		assert.Equal(t, first.ActiveFactors, again.ActiveFactors)
	}
}

func TestResolveConfidenceGrowsWithCoverage(t *testing.T) {
	m, err := New(nil)
	require.NoError(t, err)

	base := map[string]float64{"play_music": 0.5}
	traits := map[string]IntentTraits{"play_music": {Keywords: []string{"music", "play"}}}

	sparse := m.Resolve(base, traits, ContextSnapshot{GoalAlignment: "entertainment"})
	rich := m.Resolve(base, traits, ContextSnapshot{
		GoalAlignment:    "entertainment",
		SituationContext: "party",
		LocationContext:  "home",
		UserProfile:      "music_lover",
		ProsodicFeatures: "rising",
		SemanticCapacity: floatPtr(0.8),
	})

	assert.Greater(t, rich.Confidence, sparse.Confidence)
	assert.LessOrEqual(t, rich.Confidence, 1.0)
}

func TestTopMovers(t *testing.T) {
	r := &Result{Deltas: map[string]float64{
		"a": 0.3,
		"b": -0.2,
		"c": 0.1,
		"d": -0.4,
		"e": 0.0,
	}}
	boosts, penalties := r.TopMovers(1)
	require.Len(t, boosts, 1)
	require.Len(t, penalties, 1)
	assert.Equal(t, "a", boosts[0].IntentID)
	assert.Equal(t, "d", penalties[0].IntentID)
}

func TestTimeOfDayBucket(t *testing.T) {
	cases := []struct {
		hour int
		want string
	}{
		{5, "early_morning"},
		{8, "morning"},
		{13, "afternoon"},
		{18, "evening"},
		{22, "night"},
		{2, "late_night"},
	}
	for _, tc := range cases {
		got := TimeOfDayBucket(time.Date(2026, 1, 1, tc.hour, 0, 0, 0, time.UTC))
		assert.Equal(t, tc.want, got, "hour %d", tc.hour)
	}
}

func TestConflictOpposes(t *testing.T) {
	assert.True(t, ConflictOpposes("cancel", "set_timer", []string{"timer", "set"}))
	assert.False(t, ConflictOpposes("cancel", "cancel_timer", []string{"timer", "cancel"}))
	assert.False(t, ConflictOpposes("unknown_marker", "set_timer", []string{"set"}))
}
