package render

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strconv"
	"strings"

	"assetforge/internal/pipeline"
)

const syntheticRendererName = "synthetic"

// SyntheticRenderer produces deterministic placeholder artifacts from
// the prompt alone, so the full pipeline (scoring, storage, review,
// promotion) can be exercised in local and CI environments without any
// external API. The same prompt and params always yield the same bytes.
type SyntheticRenderer struct {
	cost float64
}

func NewSyntheticRenderer(costPerCall float64) *SyntheticRenderer {
	return &SyntheticRenderer{cost: costPerCall}
}

func (s *SyntheticRenderer) Name() string { return syntheticRendererName }

func (s *SyntheticRenderer) CostPerCall() float64 { return s.cost }

func (s *SyntheticRenderer) Render(ctx context.Context, prompt string, params pipeline.RenderParams) (pipeline.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return pipeline.Artifact{}, err
	}
	width, height := normalizeAspect(params.AspectRatio)
	seed := deterministicSeed(prompt, string(params.Kind), strings.Join(params.Palette, ","))
	data := renderSyntheticImage(width, height, seed)
	if len(data) == 0 {
		return pipeline.Artifact{}, fmt.Errorf("synthetic render produced no data")
	}
	return pipeline.Artifact{Data: data, Format: "image/png", Width: width, Height: height}, nil
}

func renderSyntheticImage(width, height int, seed string) []byte {
	if width <= 0 {
		width = 1024
	}
	if height <= 0 {
		height = 1024
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	base := colorFromSeed(seed, 0)
	accent := colorFromSeed(seed, 1)
	draw.Draw(img, img.Bounds(), &image.Uniform{base}, image.Point{}, draw.Src)

	stripeHeight := maxInt(32, height/12)
	for y := 0; y < height; y += stripeHeight * 2 {
		stripe := image.Rect(0, y, width, minInt(height, y+stripeHeight))
		draw.Draw(img, stripe, &image.Uniform{accent}, image.Point{}, draw.Over)
	}

	diagonal := colorFromSeed(seed, 2)
	for i := 0; i < maxInt(width, height); i += maxInt(16, width/32) {
		for y := 0; y < height; y++ {
			xx := i + y
			if xx >= width {
				break
			}
			img.Set(xx, y, diagonal)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	return buf.Bytes()
}

func colorFromSeed(seed string, shift int) color.RGBA {
	if seed == "" {
		seed = "000000"
	}
	doubled := seed + seed
	start := (shift * 6) % len(seed)
	segment := doubled[start : start+6]
	r := mustParseHexByte(segment[0:2])
	g := mustParseHexByte(segment[2:4])
	b := mustParseHexByte(segment[4:6])
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

func mustParseHexByte(s string) uint8 {
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0
	}
	return uint8(v)
}

func deterministicSeed(parts ...string) string {
	hasher := sha256.New()
	for _, part := range parts {
		hasher.Write([]byte(part))
		hasher.Write([]byte{'|'})
	}
	return hex.EncodeToString(hasher.Sum(nil))[:16]
}

func normalizeAspect(aspect string) (int, int) {
	switch strings.TrimSpace(strings.ToLower(aspect)) {
	case "16:9":
		return 1920, 1080
	case "9:16":
		return 1080, 1920
	case "3:4":
		return 768, 1024
	case "4:5":
		return 1024, 1280
	case "1:1", "square", "":
		return 1024, 1024
	default:
		parts := strings.Split(aspect, ":")
		if len(parts) == 2 {
			if a, errA := strconv.Atoi(strings.TrimSpace(parts[0])); errA == nil {
				if b, errB := strconv.Atoi(strings.TrimSpace(parts[1])); errB == nil && a > 0 && b > 0 {
					width := 1024
					return width, int(float64(width) * float64(b) / float64(a))
				}
			}
		}
		return 1024, 1024
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
