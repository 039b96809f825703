package mask

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_ColorClusterEndToEnd(t *testing.T) {
	t.Parallel()

	buf := solid(4, 4, white)
	paint(buf, 1, 1, 3, 3, blue)

	out, err := Run(context.Background(), buf, Params{
		Strategy:       ColorCluster,
		ColorThreshold: 30,
		Refine:         Refiner{Radius: 1, FloodFill: true},
	})
	require.NoError(t, err)

	assert.Equal(t, parseMask(
		"....",
		".##.",
		".##.",
		"....",
	).Bits, out.Mask.Bits)

	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			px := out.Cutout.Pix[(y*4+x)*4 : (y*4+x)*4+4]
			if x >= 1 && x <= 2 && y >= 1 && y <= 2 {
				assert.Equal(t, []uint8{0, 0, 255, 255}, px, "(%d,%d)", x, y)
			} else {
				assert.Zero(t, px[3], "(%d,%d)", x, y)
			}
		}
	}
	// 输入不被修改
	assert.Equal(t, uint8(255), buf.Pix[3])
}

func TestRun_BoundingBoxes(t *testing.T) {
	t.Parallel()

	out, err := Run(context.Background(), solid(20, 20, white), Params{
		Strategy: BoundingBoxes,
		Objects: []DetectedObject{
			{Class: "person", Score: 0.9, BBox: BoundingBox{X: 3, Y: 3, Width: 10, Height: 10}},
			{Class: "chair", Score: 0.2, BBox: BoundingBox{X: 0, Y: 0, Width: 20, Height: 20}},
		},
		MinScore: 0.4,
		Refine:   Refiner{Radius: 1, FloodFill: true},
	})
	require.NoError(t, err)
	require.Len(t, out.Objects, 1)
	assert.Equal(t, "person", out.Objects[0].Class)
	assert.Equal(t, 100, out.Mask.Count())
}

func TestRun_NoForegroundDetected(t *testing.T) {
	t.Parallel()

	_, err := Run(context.Background(), solid(8, 8, white), Params{
		Strategy: BoundingBoxes,
		Objects:  []DetectedObject{{Score: 0.1, BBox: BoundingBox{Width: 4, Height: 4}}},
		MinScore: 0.4,
	})
	assert.ErrorIs(t, err, ErrNoForegroundDetected)
}

func TestRun_Segmentation(t *testing.T) {
	t.Parallel()

	labels := make([]float32, 36)
	for y := 1; y < 5; y++ {
		for x := 1; x < 5; x++ {
			labels[y*6+x] = 0.9
		}
	}
	out, err := Run(context.Background(), solid(6, 6, white), Params{
		Strategy: SegmentationLabels,
		Labels:   labels,
		Refine:   Refiner{Radius: 1, FloodFill: true},
	})
	require.NoError(t, err)
	assert.Equal(t, 16, out.Mask.Count())
}

func TestRun_ShapeMismatch(t *testing.T) {
	t.Parallel()

	for _, s := range []Strategy{ColorCluster, SegmentationLabels, BoundingBoxes} {
		_, err := Run(context.Background(), PixelBuffer{Pix: make([]uint8, 7), Width: 2, Height: 1}, Params{Strategy: s})
		assert.ErrorIs(t, err, ErrShapeMismatch, s.String())
	}
}

func TestParseStrategy(t *testing.T) {
	t.Parallel()

	for name, want := range map[string]Strategy{
		"":             ColorCluster,
		"Color":        ColorCluster,
		"segmentation": SegmentationLabels,
		"boxes":        BoundingBoxes,
	} {
		got, err := ParseStrategy(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParseStrategy("grabcut")
	assert.Error(t, err)
}
