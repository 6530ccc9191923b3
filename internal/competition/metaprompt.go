package competition

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"assetforge/internal/domain"
)

// ComposeMetaPrompt renders the instruction sent to every model backend
// in a competition round: asset content, the emotional profile, and any
// reviewer override notes from a regeneration request.
func ComposeMetaPrompt(asset *domain.Asset) string {
	p := asset.Profile
	c := cases.Title(language.English)

	sb := &strings.Builder{}
	fmt.Fprintf(sb, "Write a single image-generation prompt for a %s asset titled %q.", asset.Kind, asset.Title)
	if asset.Description != "" {
		fmt.Fprintf(sb, " Subject: %s.", asset.Description)
	}
	fmt.Fprintf(sb, " Emotional direction: %s within a %s life stage, intensity %d of 10.",
		p.PrimaryEmotion, strings.ReplaceAll(p.LifeStage, "_", " "), p.Intensity)
	if len(p.SecondaryEmotions) > 0 {
		fmt.Fprintf(sb, " Undertones: %s.", strings.Join(p.SecondaryEmotions, ", "))
	}
	if len(p.Palette) > 0 {
		fmt.Fprintf(sb, " Palette: %s.", strings.Join(p.Palette, ", "))
	}
	if len(p.Symbols) > 0 {
		fmt.Fprintf(sb, " Symbolic elements to consider: %s.", strings.Join(p.Symbols, ", "))
	}
	if p.CompositionHint != "" {
		fmt.Fprintf(sb, " Composition: %s.", p.CompositionHint)
	}
	if asset.Category != "" {
		fmt.Fprintf(sb, " Collection: %s.", c.String(asset.Category))
	}
	for _, override := range asset.Overrides {
		fmt.Fprintf(sb, " Reviewer note: %s.", override)
	}
	sb.WriteString(" Respond with the prompt text only.")
	return sb.String()
}
