package crm

import (
	"strings"
	"time"
)

// Factor rulebooks. Each rulebook is an immutable topic -> keyword-set
// mapping constructed at package init and never mutated at runtime. Keeping
// them static is what makes the matrix a pure function of input + context.

// associationPatterns maps a recent-intent topic to the keywords of intents
// that commonly co-occur with it.
var associationPatterns = map[string][]string{
	"cooking":    {"timer", "recipe", "ingredients", "temperature", "heat"},
	"music":      {"volume", "playlist", "song", "artist", "play"},
	"navigation": {"traffic", "route", "directions", "arrive", "gps"},
	"work":       {"meeting", "schedule", "email", "calendar", "task"},
	"exercise":   {"timer", "workout", "fitness", "heart_rate", "steps"},
	"fishing":    {"river", "outdoor", "bait", "weather"},
	"money":      {"financial", "account", "payment", "balance"},
}

// conflictPairs maps an opposition marker to the action keywords it opposes.
// Shared by the CRM conflict factor (additive penalty) and the Stage 2
// hard-stop rule (discard).
var conflictPairs = map[string][]string{
	"cancel":   {"create", "start", "begin", "schedule", "set"},
	"stop":     {"play", "start", "continue", "run", "resume"},
	"close":    {"open", "launch", "start", "activate"},
	"decrease": {"increase", "raise", "boost", "enhance"},
	"no":       {"yes", "confirm", "accept", "allow"},
}

// goalGroups maps a stated purpose to the keywords of intents serving it.
var goalGroups = map[string][]string{
	"productivity":  {"work", "schedule", "reminder", "meeting", "focus"},
	"entertainment": {"music", "video", "game", "movie", "play"},
	"information":   {"search", "query", "weather", "news", "wiki"},
	"communication": {"call", "message", "text", "email", "notify"},
	"automation":    {"timer", "alarm", "reminder", "routine"},
}

// situationIntents maps a situation tag to situationally relevant keywords.
var situationIntents = map[string][]string{
	"morning_routine": {"alarm", "weather", "news", "coffee", "commute"},
	"cooking":         {"recipe", "timer", "ingredients", "heat", "food"},
	"travel":          {"navigation", "traffic", "weather", "booking"},
	"work_session":    {"focus", "timer", "schedule", "productivity"},
	"evening_relax":   {"music", "dim_lights", "entertainment"},
}

// locationIntents maps a location tag to location-relevant keywords.
var locationIntents = map[string][]string{
	"kitchen": {"cooking", "recipe", "timer", "food", "heat"},
	"bedroom": {"sleep", "alarm", "wake", "rest", "lights"},
	"office":  {"work", "meeting", "productivity", "focus", "email"},
	"car":     {"navigation", "traffic", "music", "hands_free", "call"},
	"gym":     {"workout", "exercise", "timer", "fitness", "music"},
	"home":    {"lights", "temperature", "security", "entertainment"},
	"nature":  {"river", "outdoor", "trail", "fishing", "weather"},
	"city":    {"financial", "branch", "store", "transit", "traffic"},
}

// Time-of-day buckets for the temporal factor.
const (
	bucketEarlyMorning = "early_morning" // 04:00 - 06:00
	bucketMorning      = "morning"       // 06:00 - 12:00
	bucketAfternoon    = "afternoon"     // 12:00 - 17:00
	bucketEvening      = "evening"       // 17:00 - 21:00
	bucketNight        = "night"         // 21:00 - 23:00
	bucketLateNight    = "late_night"    // 23:00 - 04:00
)

// timeBucketIntents maps a time-of-day bucket to temporally relevant keywords.
var timeBucketIntents = map[string][]string{
	bucketEarlyMorning: {"alarm", "wake", "weather", "news"},
	bucketMorning:      {"breakfast", "coffee", "schedule", "commute"},
	bucketAfternoon:    {"lunch", "meeting", "work", "focus"},
	bucketEvening:      {"dinner", "relax", "entertainment", "music"},
	bucketNight:        {"sleep", "quiet", "lights_off", "bedtime"},
	bucketLateNight:    {"sleep", "rest", "quiet", "dark"},
}

// userPreferences maps a user profile tag to preferred intent keywords.
var userPreferences = map[string][]string{
	"tech_enthusiast":      {"automation", "smart_home", "advanced"},
	"casual_user":          {"entertainment", "music", "simple"},
	"productivity_focused": {"work", "schedule", "task"},
	"fitness_oriented":     {"exercise", "health", "workout"},
}

// speechActIntents maps a linguistic indicator to matching action keywords:
// questions pair with query-style intents, imperatives with commands.
var speechActIntents = map[string][]string{
	"question":   {"query", "search", "weather", "status", "what"},
	"imperative": {"set", "start", "create", "play", "open", "navigate"},
	"polite":     {"schedule", "reminder", "call", "message"},
}

// prosodyIntents maps a pitch/urgency pattern to correlated keywords.
var prosodyIntents = map[string][]string{
	"rising": {"query", "search", "question", "status"},
	"high":   {"alarm", "urgent", "emergency", "call"},
	"low":    {"play", "set", "navigate", "lights"},
	"flat":   {"set", "create", "schedule"},
}

// TimeOfDayBucket classifies a timestamp into one of the six buckets.
func TimeOfDayBucket(t time.Time) string {
	switch hour := t.Hour(); {
	case hour >= 4 && hour < 6:
		return bucketEarlyMorning
	case hour >= 6 && hour < 12:
		return bucketMorning
	case hour >= 12 && hour < 17:
		return bucketAfternoon
	case hour >= 17 && hour < 21:
		return bucketEvening
	case hour >= 21 && hour < 23:
		return bucketNight
	default:
		return bucketLateNight
	}
}

// ConflictOpposes reports whether the given conflict marker opposes an
// intent identified by its id and keyword list. Used by the Stage 2
// hard-stop rule; the CRM conflict factor uses the same table so the soft
// penalty and the hard discard can never disagree about opposition.
func ConflictOpposes(marker, intentID string, keywords []string) bool {
	opposed, ok := conflictPairs[strings.ToLower(strings.TrimSpace(marker))]
	if !ok {
		return false
	}
	return matchesAny(intentID, keywords, opposed)
}

// matchesAny reports whether any rulebook keyword appears in the intent id
// or its declared keyword list. Matching is case-insensitive substring on
// the id (ids are snake_case phrases) and exact on declared keywords.
func matchesAny(intentID string, keywords []string, rulebook []string) bool {
	id := strings.ToLower(intentID)
	for _, kw := range rulebook {
		if strings.Contains(id, kw) {
			return true
		}
		for _, declared := range keywords {
			if strings.EqualFold(declared, kw) {
				return true
			}
		}
	}
	return false
}
