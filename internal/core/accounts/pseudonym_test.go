package accounts

import (
	"context"
	"fmt"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPseudonymGenerator_Generate(t *testing.T) {
	gen := NewPseudonymGenerator(&fakeMountains{})

	p, err := gen.Generate(context.Background())
	require.NoError(t, err)

	assert.Regexp(t, `^[A-Z]$`, p.Letter)
	assert.Equal(t, p.Letter+". Matterhorn", p.DisplayName)
	assert.Regexp(t, regexp.MustCompile(`^#[0-9a-f]{6}$`), p.Color)
}

func TestRandomColor_LumaBounds(t *testing.T) {
	for i := 0; i < 200; i++ {
		color, err := randomColor()
		require.NoError(t, err)

		var r, g, b byte
		_, err = fmt.Sscanf(color, "#%02x%02x%02x", &r, &g, &b)
		require.NoError(t, err)

		luma := perceivedLuma(r, g, b)
		assert.GreaterOrEqual(t, luma, lumaMin)
		assert.LessOrEqual(t, luma, lumaMax)
	}
}

func TestPerceivedLuma_BT709Weights(t *testing.T) {
	assert.InDelta(t, 0.2126*255, perceivedLuma(255, 0, 0), 1e-9)
	assert.InDelta(t, 0.7152*255, perceivedLuma(0, 255, 0), 1e-9)
	assert.InDelta(t, 0.0722*255, perceivedLuma(0, 0, 255), 1e-9)
	assert.InDelta(t, 255.0, perceivedLuma(255, 255, 255), 1e-9)
}
