package accounts

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
)

const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// lumaMin/lumaMax bound the perceived brightness of generated colors so the
// accent reads on both light and dark backgrounds.
const (
	lumaMin = 30.0
	lumaMax = 180.0
)

// PseudonymGenerator draws anonymous public identities from the mountain
// template table.
type PseudonymGenerator struct {
	mountains MountainRepository
}

func NewPseudonymGenerator(mountains MountainRepository) *PseudonymGenerator {
	return &PseudonymGenerator{mountains: mountains}
}

// Generate draws a uniformly random mountain template, initial and accent
// color. Display names look like "K. Matterhorn".
func (g *PseudonymGenerator) Generate(ctx context.Context) (*Pseudonym, error) {
	tmpl, err := g.mountains.GetRandom(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to draw mountain template: %w", err)
	}

	letter, err := randomLetter()
	if err != nil {
		return nil, err
	}

	color, err := randomColor()
	if err != nil {
		return nil, err
	}

	return &Pseudonym{
		Template:    *tmpl,
		Letter:      letter,
		Color:       color,
		DisplayName: fmt.Sprintf("%s. %s", letter, tmpl.Name),
	}, nil
}

func randomLetter() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(letters))))
	if err != nil {
		return "", fmt.Errorf("failed to draw random letter: %w", err)
	}
	return string(letters[n.Int64()]), nil
}

// randomColor rejection-samples RGB until the perceived luma lands in
// [lumaMin, lumaMax].
func randomColor() (string, error) {
	for {
		buf := make([]byte, 3)
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to draw random color: %w", err)
		}

		if luma := perceivedLuma(buf[0], buf[1], buf[2]); luma >= lumaMin && luma <= lumaMax {
			return fmt.Sprintf("#%02x%02x%02x", buf[0], buf[1], buf[2]), nil
		}
	}
}

// perceivedLuma is the ITU-R BT.709 luma of an sRGB color.
func perceivedLuma(r, g, b byte) float64 {
	return 0.2126*float64(r) + 0.7152*float64(g) + 0.0722*float64(b)
}
