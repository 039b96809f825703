package service

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	got  GenerateRequest
	data []byte
	err  error
}

func (f *fakeGenerator) Generate(_ context.Context, req GenerateRequest) ([]byte, error) {
	f.got = req
	return f.data, f.err
}

func solidImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func TestProcessor_Process(t *testing.T) {
	t.Parallel()

	svc, store, _ := newTestService(t, testPipelineConfig(), nil, nil, nil)
	gen := &fakeGenerator{data: pngBytes(t, solidImage(32, 32, color.NRGBA{G: 255, A: 255}))}
	p := NewProcessor(svc, gen, store)

	result, err := p.Process(testContext(t), GenerateOptions{
		Cutout: CutoutRequest{Data: pngBytes(t, subjectImage(16, 16, 4, 4, 12, 12)), Format: "jpg"},
		Prompt: "forest",
		Seed:   7,
	})
	require.NoError(t, err)

	assert.Equal(t, "forest", gen.got.Prompt)
	assert.Equal(t, DefaultStyle, gen.got.Style)
	assert.Equal(t, int64(7), gen.got.Seed)
	assert.Equal(t, "png", result.Cutout.Format)
	assert.Equal(t, int64(7), result.Seed)

	data, err := store.Load(testContext(t), result.Filename)
	require.NoError(t, err)
	img, _, err := DecodeImage(data, 0)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 16, 16), img.Bounds())

	// 背景来自生成结果，主体保持原色
	r, g, b, _ := img.At(0, 0).RGBA()
	assert.Equal(t, [3]uint32{0, 0xffff, 0}, [3]uint32{r, g, b})
	r, g, b, _ = img.At(8, 8).RGBA()
	assert.Equal(t, [3]uint32{0, 0, 0xffff}, [3]uint32{r, g, b})
}

func TestProcessor_RequiresPrompt(t *testing.T) {
	t.Parallel()

	svc, store, _ := newTestService(t, testPipelineConfig(), nil, nil, nil)
	gen := &fakeGenerator{}
	p := NewProcessor(svc, gen, store)

	_, err := p.Process(testContext(t), GenerateOptions{Cutout: CutoutRequest{Data: []byte("x")}})
	assert.ErrorIs(t, err, ErrInvalidPrompt)
	assert.Empty(t, gen.got.Prompt)
}

func TestCompose(t *testing.T) {
	t.Parallel()

	subject := image.NewNRGBA(image.Rect(0, 0, 4, 2))
	subject.SetNRGBA(1, 1, color.NRGBA{R: 255, A: 255})
	background := solidImage(8, 8, color.NRGBA{B: 255, A: 255})

	out, err := Compose(pngBytes(t, subject), pngBytes(t, background))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 2), out.Bounds())

	r, g, b, a := out.At(1, 1).RGBA()
	assert.Equal(t, [4]uint32{0xffff, 0, 0, 0xffff}, [4]uint32{r, g, b, a})
	r, g, b, a = out.At(0, 0).RGBA()
	assert.Equal(t, [4]uint32{0, 0, 0xffff, 0xffff}, [4]uint32{r, g, b, a})
}
