package model

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
)

const staticBackendName = "static"

var staticRenderStyles = []string{
	"soft watercolor illustration with gentle gradients",
	"flat design illustration with clean geometric shapes",
	"hand-drawn illustration with organic linework",
	"minimal vector illustration with generous negative space",
}

var staticLightingNotes = []string{
	"diffuse morning light",
	"warm golden-hour lighting",
	"even studio lighting",
	"soft overcast light",
}

// StaticBackend is the deterministic offline competitor. It rewrites
// the meta-prompt into a fixed prompt shape with hash-picked style and
// lighting descriptors, so competitions always have at least one
// candidate and local environments work without any API key. It never
// fails and declares zero cost.
type StaticBackend struct{}

func NewStaticBackend() *StaticBackend { return &StaticBackend{} }

func (s *StaticBackend) Name() string { return staticBackendName }

func (s *StaticBackend) DeclaredCost() float64 { return 0 }

func (s *StaticBackend) GeneratePrompt(ctx context.Context, metaPrompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(metaPrompt))
	style := staticRenderStyles[int(sum[0])%len(staticRenderStyles)]
	lighting := staticLightingNotes[int(sum[1])%len(staticLightingNotes)]

	var b strings.Builder
	b.WriteString(style)
	b.WriteString(", ")
	b.WriteString(lighting)
	b.WriteString(", balanced composition with a clear focal point, high resolution, detailed texture.")
	for _, line := range strings.Split(metaPrompt, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fmt.Fprintf(&b, " %s.", strings.TrimSuffix(line, "."))
	}
	return b.String(), nil
}
