package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/dany616/bgenius-background-processor/config"
	"github.com/dany616/bgenius-background-processor/mask"
	"github.com/stretchr/testify/require"
)

var (
	white = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	blue  = color.NRGBA{B: 255, A: 255}
)

// subjectImage 白底，[x0,x1)×[y0,y1) 为蓝色
func subjectImage(w, h, x0, y0, x1, y1 int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := white
			if x >= x0 && x < x1 && y >= y0 && y < y1 {
				c = blue
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testPipelineConfig() *config.PipelineConfig {
	cfg := config.Default().Pipeline
	cfg.QueueTimeout = time.Second
	return &cfg
}

func newTestService(t *testing.T, cfg *config.PipelineConfig, seg Segmenter, det Detector, rem Remover) (*CutoutService, *LocalStore, *MemoryStore) {
	t.Helper()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	cache := NewMemoryStore(time.Hour)
	return NewCutoutService(cfg, store, cache, seg, det, rem), store, cache
}

type fakeSegmenter struct {
	loadErr error
	labels  func(width, height int) []float32
}

func (f *fakeSegmenter) EnsureLoaded(context.Context) error { return f.loadErr }

func (f *fakeSegmenter) Segment(ctx context.Context, _ []byte, width, height int) ([]float32, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.labels(width, height), nil
}

type fakeDetector struct {
	mu      sync.Mutex
	calls   int
	objects []mask.DetectedObject
	err     error
}

func (f *fakeDetector) EnsureLoaded(context.Context) error { return nil }

func (f *fakeDetector) Detect(context.Context, []byte) ([]mask.DetectedObject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.objects, f.err
}

func (f *fakeDetector) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeRemover struct {
	data []byte
	err  error
}

func (f *fakeRemover) Remove(context.Context, []byte, string, string) ([]byte, error) {
	return f.data, f.err
}

// recorder 记录状态迁移序列
type recorder struct {
	mu     sync.Mutex
	states []State
}

func (r *recorder) record(_, to State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, to)
}

func (r *recorder) Sequence() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}
