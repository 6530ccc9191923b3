package domain

// EmotionalProfile classifies content into the attributes that steer
// prompt generation. Owned by its Asset and immutable once computed;
// a fresh analysis replaces the whole value.
type EmotionalProfile struct {
	LifeStage         string
	PrimaryEmotion    string
	SecondaryEmotions []string
	Intensity         int // 0..10
	Palette           []string
	Symbols           []string
	CompositionHint   string

	// Defaulted marks that analysis fell back to the neutral profile,
	// kept for quality auditing.
	Defaulted bool
}
