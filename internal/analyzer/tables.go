package analyzer

// Keyword tables steering the emotional classification. The vocabulary
// here is deliberately small; production deployments swap in richer
// tables without touching the analysis logic.

const defaultStage = "everyday"

// stagePriority breaks keyword-count ties deterministically.
var stagePriority = []string{
	"birth",
	"childhood",
	"coming_of_age",
	"union",
	"achievement",
	"loss",
	"renewal",
	"everyday",
}

var stageKeywords = map[string][]string{
	"birth":         {"newborn", "baby", "birth", "arrival", "beginning", "first"},
	"childhood":     {"child", "play", "school", "wonder", "curious", "game", "toy"},
	"coming_of_age": {"graduation", "journey", "independence", "discovery", "threshold", "leaving"},
	"union":         {"wedding", "marriage", "partnership", "together", "love", "vow", "anniversary"},
	"achievement":   {"victory", "award", "summit", "milestone", "triumph", "promotion", "success"},
	"loss":          {"grief", "farewell", "memorial", "goodbye", "mourning", "absence", "loss"},
	"renewal":       {"spring", "healing", "rebirth", "recovery", "fresh", "dawn", "return"},
	"everyday":      {"morning", "home", "routine", "meal", "work", "walk", "evening"},
}

type emotionEntry struct {
	primary   string
	secondary []string
}

var stageEmotions = map[string]emotionEntry{
	"birth":         {primary: "tenderness", secondary: []string{"hope", "awe"}},
	"childhood":     {primary: "joy", secondary: []string{"curiosity", "playfulness"}},
	"coming_of_age": {primary: "anticipation", secondary: []string{"courage", "uncertainty"}},
	"union":         {primary: "love", secondary: []string{"devotion", "celebration"}},
	"achievement":   {primary: "pride", secondary: []string{"elation", "gratitude"}},
	"loss":          {primary: "sorrow", secondary: []string{"longing", "reverence"}},
	"renewal":       {primary: "hope", secondary: []string{"relief", "serenity"}},
	"everyday":      {primary: "calm", secondary: []string{"contentment", "warmth"}},
}

// palettes and symbols are keyed by "stage/primary-emotion".
var palettes = map[string][]string{
	"birth/tenderness":         {"soft pink", "cream", "pale gold"},
	"childhood/joy":            {"sun yellow", "sky blue", "grass green"},
	"coming_of_age/anticipation": {"amber", "deep teal", "slate"},
	"union/love":               {"burgundy", "blush", "ivory"},
	"achievement/pride":        {"royal blue", "gold", "charcoal"},
	"loss/sorrow":              {"dove grey", "midnight blue", "faded lavender"},
	"renewal/hope":             {"mint", "pale yellow", "light coral"},
	"everyday/calm":            {"warm beige", "sage", "terracotta"},
}

var symbols = map[string][]string{
	"birth/tenderness":         {"cradle", "open hands", "sunrise"},
	"childhood/joy":            {"kite", "paper boat", "swing"},
	"coming_of_age/anticipation": {"doorway", "winding road", "horizon"},
	"union/love":               {"interlocked rings", "two trees", "shared table"},
	"achievement/pride":        {"laurel", "mountain peak", "raised flag"},
	"loss/sorrow":              {"bare branch", "candle", "still water"},
	"renewal/hope":             {"sprout", "first light", "open window"},
	"everyday/calm":            {"kettle", "window seat", "worn path"},
}

var amplifiers = []string{
	"deeply", "overwhelming", "intense", "profound", "immense",
	"extraordinary", "unforgettable", "radiant", "fierce",
}

var diminishers = []string{
	"slightly", "quiet", "gentle", "subtle", "mild", "faint", "soft",
}

var neutralProfile = profileSeed{
	stage:     defaultStage,
	primary:   "calm",
	secondary: []string{"contentment"},
	intensity: 5,
	palette:   []string{"warm beige", "sage", "terracotta"},
	symbols:   []string{"window seat"},
}

type profileSeed struct {
	stage     string
	primary   string
	secondary []string
	intensity int
	palette   []string
	symbols   []string
}
