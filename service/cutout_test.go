package service

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/dany616/bgenius-background-processor/mask"
	"github.com/dany616/bgenius-background-processor/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCutoutService_ColorCluster(t *testing.T) {
	t.Parallel()

	svc, store, _ := newTestService(t, testPipelineConfig(), nil, nil, nil)
	rec := &recorder{}

	result, err := svc.Remove(testContext(t), &CutoutRequest{
		Data:     pngBytes(t, subjectImage(16, 16, 4, 4, 12, 12)),
		Strategy: "color",
	}, NewTracker(rec.record))
	require.NoError(t, err)

	assert.Equal(t, []State{StateProcessing, StateComplete}, rec.Sequence())
	assert.Equal(t, "color", result.Strategy)
	assert.Equal(t, "png", result.Format)
	assert.Equal(t, model.BBox{X: 4, Y: 4, Width: 8, Height: 8}, result.BBox)
	assert.InDelta(t, 0.25, result.Foreground, 1e-9)
	assert.False(t, result.Downscaled)
	assert.NotEmpty(t, result.Key)
	assert.Equal(t, ImageURL(result.Filename), result.ImageURL)

	data, err := store.Load(testContext(t), result.Filename)
	require.NoError(t, err)
	img, _, err := DecodeImage(data, 0)
	require.NoError(t, err)
	_, _, _, a := img.At(0, 0).RGBA()
	assert.Zero(t, a)
	r, g, b, a := img.At(6, 6).RGBA()
	assert.Equal(t, [4]uint32{0, 0, 0xffff, 0xffff}, [4]uint32{r, g, b, a})
}

func TestCutoutService_CachedResult(t *testing.T) {
	t.Parallel()

	det := &fakeDetector{objects: []mask.DetectedObject{
		{Class: "person", Score: 0.9, BBox: mask.BoundingBox{X: 2, Y: 2, Width: 6, Height: 6}},
	}}
	svc, _, cache := newTestService(t, testPipelineConfig(), nil, det, nil)
	req := &CutoutRequest{Data: pngBytes(t, subjectImage(12, 12, 2, 2, 8, 8)), Strategy: "boxes"}

	first, err := svc.Remove(testContext(t), req, nil)
	require.NoError(t, err)

	rec := &recorder{}
	second, err := svc.Remove(testContext(t), req, NewTracker(rec.record))
	require.NoError(t, err)

	assert.Equal(t, first.Filename, second.Filename)
	assert.Equal(t, 1, det.Calls())
	assert.Equal(t, []State{StateProcessing, StateComplete}, rec.Sequence())

	cached, err := cache.GetResult(testContext(t), first.Key)
	require.NoError(t, err)
	assert.Equal(t, first.Filename, cached.Filename)

	other := *req
	other.Format = "jpg"
	assert.NotEqual(t, req.CacheKey("x"), other.CacheKey("x"))
}

func TestCutoutService_DetectorLoadsModel(t *testing.T) {
	t.Parallel()

	det := &fakeDetector{objects: []mask.DetectedObject{
		{Class: "person", Score: 0.9, BBox: mask.BoundingBox{X: 2, Y: 2, Width: 6, Height: 6}},
		{Class: "cup", Score: 0.2, BBox: mask.BoundingBox{X: 0, Y: 0, Width: 12, Height: 12}},
	}}
	svc, _, _ := newTestService(t, testPipelineConfig(), nil, det, nil)
	rec := &recorder{}

	result, err := svc.Remove(testContext(t), &CutoutRequest{
		Data:     pngBytes(t, subjectImage(12, 12, 0, 0, 0, 0)),
		Strategy: "boxes",
	}, NewTracker(rec.record))
	require.NoError(t, err)

	assert.Equal(t, []State{StateLoadingModel, StateProcessing, StateComplete}, rec.Sequence())
	assert.Equal(t, []model.Object{
		{Class: "person", Score: 0.9, BBox: model.BBox{X: 2, Y: 2, Width: 6, Height: 6}},
	}, result.Objects)
	assert.Equal(t, model.BBox{X: 2, Y: 2, Width: 6, Height: 6}, result.BBox)
	assert.InDelta(t, 36.0/144.0, result.Foreground, 1e-9)
}

func TestCutoutService_ClientBoxesSkipDetector(t *testing.T) {
	t.Parallel()

	det := &fakeDetector{}
	svc, _, _ := newTestService(t, testPipelineConfig(), nil, det, nil)
	rec := &recorder{}
	radius := 0

	result, err := svc.Remove(testContext(t), &CutoutRequest{
		Data:     pngBytes(t, subjectImage(10, 10, 0, 0, 0, 0)),
		Strategy: "boxes",
		Objects: []mask.DetectedObject{
			{Class: "a", Score: 0.5, BBox: mask.BoundingBox{X: 1, Y: 1, Width: 2, Height: 2}},
			{Class: "b", Score: 0.8, BBox: mask.BoundingBox{X: 5, Y: 5, Width: 3, Height: 3}},
		},
		Selected: []int{1},
		Radius:   &radius,
	}, NewTracker(rec.record))
	require.NoError(t, err)

	assert.Zero(t, det.Calls())
	assert.Equal(t, []State{StateProcessing, StateComplete}, rec.Sequence())
	require.Len(t, result.Objects, 1)
	assert.Equal(t, "a", result.Objects[0].Class)
	assert.Equal(t, model.BBox{X: 1, Y: 1, Width: 2, Height: 2}, result.BBox)
}

func TestCutoutService_Segmentation(t *testing.T) {
	t.Parallel()

	seg := &fakeSegmenter{labels: func(w, h int) []float32 {
		labels := make([]float32, w*h)
		for y := 2; y < 6; y++ {
			for x := 2; x < 6; x++ {
				labels[y*w+x] = 0.95
			}
		}
		return labels
	}}
	svc, _, _ := newTestService(t, testPipelineConfig(), seg, nil, nil)
	rec := &recorder{}

	result, err := svc.Remove(testContext(t), &CutoutRequest{
		Data:     pngBytes(t, subjectImage(8, 8, 0, 0, 0, 0)),
		Strategy: "segmentation",
	}, NewTracker(rec.record))
	require.NoError(t, err)

	assert.Equal(t, []State{StateLoadingModel, StateProcessing, StateComplete}, rec.Sequence())
	assert.Equal(t, model.BBox{X: 2, Y: 2, Width: 4, Height: 4}, result.BBox)
}

func TestCutoutService_Failures(t *testing.T) {
	t.Parallel()

	down := fmt.Errorf("%w: connection refused", mask.ErrExternalModelUnavailable)
	tests := []struct {
		name    string
		seg     Segmenter
		det     Detector
		req     CutoutRequest
		wantErr error
		want    []State
	}{
		{
			name:    "分割模型不可用",
			seg:     &fakeSegmenter{loadErr: down},
			req:     CutoutRequest{Strategy: "segmentation"},
			wantErr: mask.ErrExternalModelUnavailable,
			want:    []State{StateLoadingModel, StateFailed},
		},
		{
			name:    "未配置检测器",
			req:     CutoutRequest{Strategy: "boxes"},
			wantErr: mask.ErrExternalModelUnavailable,
			want:    []State{StateFailed},
		},
		{
			name: "没有前景",
			req: CutoutRequest{Strategy: "boxes", Objects: []mask.DetectedObject{
				{Score: 0.1, BBox: mask.BoundingBox{Width: 4, Height: 4}},
			}},
			wantErr: mask.ErrNoForegroundDetected,
			want:    []State{StateProcessing, StateFailed},
		},
		{
			name:    "检测器输出错误",
			det:     &fakeDetector{err: down},
			req:     CutoutRequest{Strategy: "boxes"},
			wantErr: mask.ErrExternalModelUnavailable,
			want:    []State{StateLoadingModel, StateProcessing, StateFailed},
		},
		{
			name:    "未知策略",
			req:     CutoutRequest{Strategy: "grabcut"},
			wantErr: ErrInvalidParameter,
			want:    []State{StateFailed},
		},
		{
			name:    "未知格式",
			req:     CutoutRequest{Format: "gif"},
			wantErr: ErrInvalidParameter,
			want:    []State{StateFailed},
		},
		{
			name:    "图片损坏",
			req:     CutoutRequest{Data: []byte("garbage")},
			wantErr: ErrInvalidImage,
			want:    []State{StateFailed},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc, _, _ := newTestService(t, testPipelineConfig(), tt.seg, tt.det, nil)
			req := tt.req
			if req.Data == nil {
				req.Data = pngBytes(t, subjectImage(8, 8, 2, 2, 6, 6))
			}
			rec := &recorder{}
			tr := NewTracker(rec.record)

			_, err := svc.Remove(testContext(t), &req, tr)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.want, rec.Sequence())
			assert.Equal(t, StateFailed, tr.State())
		})
	}
}

func TestCutoutService_RejectsOversizedPixelCount(t *testing.T) {
	t.Parallel()

	cfg := testPipelineConfig()
	cfg.MaxPixels = 100
	svc, _, _ := newTestService(t, cfg, nil, nil, nil)

	_, err := svc.Remove(testContext(t), &CutoutRequest{Data: pngBytes(t, subjectImage(16, 16, 4, 4, 12, 12))}, nil)
	assert.ErrorIs(t, err, ErrImageTooLarge)
	assert.ErrorIs(t, err, ErrInvalidImage)

	_, err = svc.Edges(testContext(t), pngBytes(t, subjectImage(16, 16, 4, 4, 12, 12)), 0)
	assert.ErrorIs(t, err, ErrImageTooLarge)
}

func TestCutoutService_QueueFull(t *testing.T) {
	t.Parallel()

	cfg := testPipelineConfig()
	cfg.MaxConcurrent = 1
	cfg.QueueTimeout = 20 * time.Millisecond
	svc, _, _ := newTestService(t, cfg, nil, nil, nil)
	svc.semaphore <- struct{}{}

	_, err := svc.Remove(testContext(t), &CutoutRequest{Data: pngBytes(t, subjectImage(8, 8, 2, 2, 6, 6))}, nil)
	assert.ErrorIs(t, err, ErrQueueFull)

	ctx, cancel := context.WithCancel(testContext(t))
	cancel()
	_, err = svc.Remove(ctx, &CutoutRequest{Data: pngBytes(t, subjectImage(8, 8, 2, 2, 6, 6))}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCutoutService_RemoveBG(t *testing.T) {
	t.Parallel()

	out := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	for y := 3; y < 7; y++ {
		for x := 3; x < 7; x++ {
			out.SetNRGBA(x, y, color.NRGBA{R: 200, A: 255})
		}
	}
	rem := &fakeRemover{data: pngBytes(t, out)}
	svc, _, _ := newTestService(t, testPipelineConfig(), nil, nil, rem)

	result, err := svc.Remove(testContext(t), &CutoutRequest{
		Data:     pngBytes(t, subjectImage(10, 10, 3, 3, 7, 7)),
		Strategy: StrategyRemoveBG,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "removebg", result.Strategy)
	assert.Equal(t, model.BBox{X: 3, Y: 3, Width: 4, Height: 4}, result.BBox)
	assert.InDelta(t, 0.16, result.Foreground, 1e-9)

	empty := &fakeRemover{data: pngBytes(t, image.NewNRGBA(image.Rect(0, 0, 4, 4)))}
	svc, _, _ = newTestService(t, testPipelineConfig(), nil, nil, empty)
	_, err = svc.Remove(testContext(t), &CutoutRequest{
		Data:     pngBytes(t, subjectImage(4, 4, 1, 1, 3, 3)),
		Strategy: StrategyRemoveBG,
	}, nil)
	assert.ErrorIs(t, err, mask.ErrNoForegroundDetected)
}

func TestCutoutService_Downscale(t *testing.T) {
	t.Parallel()

	cfg := testPipelineConfig()
	cfg.MaxWidth, cfg.MaxHeight = 32, 32
	svc, _, _ := newTestService(t, cfg, nil, nil, nil)

	result, err := svc.Remove(testContext(t), &CutoutRequest{
		Data: pngBytes(t, subjectImage(64, 32, 16, 8, 48, 24)),
	}, nil)
	require.NoError(t, err)
	assert.True(t, result.Downscaled)
	assert.Equal(t, 32, result.Width)
	assert.Equal(t, 16, result.Height)
}

func TestCutoutService_ClientBoxesFollowDownscale(t *testing.T) {
	t.Parallel()

	cfg := testPipelineConfig()
	cfg.MaxWidth, cfg.MaxHeight = 16, 16
	svc, _, _ := newTestService(t, cfg, nil, nil, nil)

	// 框以上传原图 32x32 为坐标系，处理时缩小为 16x16
	result, err := svc.Remove(testContext(t), &CutoutRequest{
		Data:     pngBytes(t, subjectImage(32, 32, 16, 8, 28, 24)),
		Strategy: "boxes",
		Objects: []mask.DetectedObject{
			{Class: "cup", Score: 0.9, BBox: mask.BoundingBox{X: 16, Y: 8, Width: 12, Height: 16}},
		},
	}, nil)
	require.NoError(t, err)

	assert.True(t, result.Downscaled)
	assert.Equal(t, model.BBox{X: 8, Y: 4, Width: 6, Height: 8}, result.BBox)
	assert.InDelta(t, 48.0/256.0, result.Foreground, 1e-9)
	require.Len(t, result.Objects, 1)
	assert.Equal(t, model.BBox{X: 8, Y: 4, Width: 6, Height: 8}, result.Objects[0].BBox)
}

func TestScaleObjects(t *testing.T) {
	t.Parallel()

	objects := []mask.DetectedObject{{Class: "a", Score: 0.7, BBox: mask.BoundingBox{X: 10, Y: 4, Width: 20, Height: 8}}}

	same := scaleObjects(objects, scaleFactor{x: 1, y: 1})
	assert.Equal(t, objects, same)

	half := scaleObjects(objects, scaleFactor{x: 0.5, y: 0.25})
	assert.Equal(t, mask.BoundingBox{X: 5, Y: 1, Width: 10, Height: 2}, half[0].BBox)
	assert.Equal(t, "a", half[0].Class)
	// 原切片不变
	assert.Equal(t, 10.0, objects[0].BBox.X)
}

func TestCutoutService_Edges(t *testing.T) {
	t.Parallel()

	svc, store, _ := newTestService(t, testPipelineConfig(), nil, nil, nil)
	result, err := svc.Edges(testContext(t), pngBytes(t, subjectImage(6, 6, 3, 0, 6, 6)), 0)
	require.NoError(t, err)

	assert.Equal(t, 6, result.Width)
	assert.Equal(t, 6, result.Height)
	assert.Equal(t, 50.0, result.Threshold)
	assert.True(t, store.Exists(testContext(t), result.Filename))
}
