package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strings"
	"time"

	"github.com/dany616/bgenius-background-processor/config"
	"github.com/dany616/bgenius-background-processor/mask"
	"github.com/dany616/bgenius-background-processor/model"
	"github.com/dany616/bgenius-background-processor/utils"
	"go.uber.org/zap"
)

const StrategyRemoveBG = "removebg"

var ErrQueueFull = errors.New("processing queue is full, try again later")

type Segmenter interface {
	EnsureLoaded(ctx context.Context) error
	Segment(ctx context.Context, data []byte, width, height int) ([]float32, error)
}

type Detector interface {
	EnsureLoaded(ctx context.Context) error
	Detect(ctx context.Context, data []byte) ([]mask.DetectedObject, error)
}

type Remover interface {
	Remove(ctx context.Context, data []byte, filename, apiKey string) ([]byte, error)
}

// CutoutRequest 一次去背景请求
type CutoutRequest struct {
	Data     []byte
	Filename string
	// Strategy color | segmentation | boxes | removebg
	Strategy string
	// Objects 客户端直接给出的检测框，为空时调用检测服务
	Objects  []mask.DetectedObject
	Selected []int
	// Threshold 0 表示使用配置默认值
	Threshold float64
	// Radius 为 nil 时按策略取默认半径
	Radius *int
	Format string
	APIKey string
}

// CacheKey 内容 md5 加上影响结果的参数
func (r *CutoutRequest) CacheKey(md5 string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%g|%s", strings.ToLower(r.Strategy), r.Threshold, r.Format)
	if r.Radius != nil {
		fmt.Fprintf(&b, "|r%d", *r.Radius)
	}
	if len(r.Objects) > 0 {
		objects, _ := json.Marshal(r.Objects)
		b.Write(objects)
	}
	if len(r.Selected) > 0 {
		fmt.Fprintf(&b, "|%v", r.Selected)
	}
	return md5 + "-" + utils.BytesMD5([]byte(b.String()))[:12]
}

// Cutout 处理结果及编码后的图片
type Cutout struct {
	Result *model.CutoutResult
	Data   []byte
}

// CutoutService 负责去背景处理，限制同时运行的流水线数量
type CutoutService struct {
	cfg          config.PipelineConfig
	semaphore    chan struct{}
	queueTimeout time.Duration
	segmenter    Segmenter
	detector     Detector
	remover      Remover
	store        ImageStore
	cache        ResultCache
}

func NewCutoutService(cfg *config.PipelineConfig, store ImageStore, cache ResultCache, segmenter Segmenter, detector Detector, remover Remover) *CutoutService {
	return &CutoutService{
		cfg:          *cfg,
		semaphore:    make(chan struct{}, max(cfg.MaxConcurrent, 1)),
		queueTimeout: cfg.QueueTimeout,
		segmenter:    segmenter,
		detector:     detector,
		remover:      remover,
		store:        store,
		cache:        cache,
	}
}

func (s *CutoutService) acquire(ctx context.Context) (func(), error) {
	qctx, cancel := context.WithTimeout(ctx, s.queueTimeout)
	defer cancel()

	select {
	case s.semaphore <- struct{}{}:
		return func() { <-s.semaphore }, nil
	case <-qctx.Done():
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, ErrQueueFull
	}
}

// Remove 去背景并保存结果。tracker 可以为 nil
func (s *CutoutService) Remove(ctx context.Context, req *CutoutRequest, tracker *Tracker) (result *model.CutoutResult, err error) {
	if tracker == nil {
		tracker = NewTracker(nil)
	}
	defer func() {
		if err != nil {
			tracker.Fail()
		}
	}()

	md5 := utils.BytesMD5(req.Data)
	key := req.CacheKey(md5)
	if cached := s.cached(ctx, key); cached != nil {
		utils.Logger.Info("cache hit", zap.String("cache_key", key))
		if err := tracker.Transition(StateProcessing); err != nil {
			return nil, err
		}
		if err := tracker.Transition(StateComplete); err != nil {
			return nil, err
		}
		return cached, nil
	}

	out, err := s.Process(ctx, req, tracker)
	if err != nil {
		return nil, err
	}
	out.Result.Key = key
	out.Result.MD5 = md5

	if err := s.save(ctx, out.Result, out.Data); err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetResult(ctx, key, out.Result); err != nil {
			utils.Logger.Warn("failed to set cache", zap.Error(err))
		}
	}
	if err := tracker.Transition(StateComplete); err != nil {
		return nil, err
	}
	return out.Result, nil
}

func (s *CutoutService) cached(ctx context.Context, key string) *model.CutoutResult {
	if s.cache == nil {
		return nil
	}
	r, err := s.cache.GetResult(ctx, key)
	if err != nil {
		utils.Logger.Warn("failed to get cache", zap.Error(err))
		return nil
	}
	// 图片可能已经被定时任务清理
	if r == nil || !s.store.Exists(ctx, r.Filename) {
		return nil
	}
	return r
}

func (s *CutoutService) save(ctx context.Context, result *model.CutoutResult, data []byte) error {
	filename, err := s.store.Save(ctx, data, result.Format)
	if err != nil {
		return err
	}
	result.Filename = filename
	result.ImageURL = ImageURL(filename)
	return nil
}

// Process 运行流水线但不保存，成功时 tracker 停在 processing
func (s *CutoutService) Process(ctx context.Context, req *CutoutRequest, tracker *Tracker) (*Cutout, error) {
	if tracker == nil {
		tracker = NewTracker(nil)
	}

	format, err := NormalizeFormat(req.Format)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}

	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	startTime := time.Now()

	img, srcFormat, err := DecodeImage(req.Data, s.cfg.MaxPixels)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}
	origW, origH := img.Bounds().Dx(), img.Bounds().Dy()
	img, downscaled := Downscale(img, s.cfg.MaxWidth, s.cfg.MaxHeight)

	utils.Logger.Info("processing image",
		zap.String("strategy", req.Strategy),
		zap.String("format", srcFormat),
		zap.Int("width", origW),
		zap.Int("height", origH),
		zap.Bool("downscaled", downscaled))

	var cutout image.Image
	var m *mask.Mask
	var objects []mask.DetectedObject

	if strings.EqualFold(req.Strategy, StrategyRemoveBG) {
		if err := tracker.Transition(StateProcessing); err != nil {
			return nil, err
		}
		cutout, m, err = s.removeRemote(ctx, req)
	} else {
		scale := scaleFactor{x: float64(img.Bounds().Dx()) / float64(origW), y: float64(img.Bounds().Dy()) / float64(origH)}
		cutout, m, objects, err = s.removeLocal(ctx, req, img, scale, tracker)
	}
	if err != nil {
		return nil, err
	}

	data, _, err := EncodeImage(cutout, format, s.cfg.JPEGQuality)
	if err != nil {
		return nil, err
	}

	b := cutout.Bounds()
	result := &model.CutoutResult{
		Strategy:   strings.ToLower(req.Strategy),
		Width:      b.Dx(),
		Height:     b.Dy(),
		Format:     format,
		BBox:       boundingBox(m),
		Foreground: float64(m.Count()) / float64(m.Width*m.Height),
		Objects:    toModelObjects(objects, b.Dx(), b.Dy()),
		Downscaled: downscaled,
		Timestamp:  time.Now().Unix(),
	}
	if result.Strategy == "" {
		result.Strategy = mask.ColorCluster.String()
	}

	utils.Logger.Info("image processed successfully",
		zap.String("strategy", result.Strategy),
		zap.Duration("duration", time.Since(startTime)),
		zap.Float64("foreground_ratio", result.Foreground))

	return &Cutout{Result: result, Data: data}, nil
}

// scaleFactor 缩放后尺寸与原图尺寸之比
type scaleFactor struct{ x, y float64 }

func (f scaleFactor) identity() bool { return f.x == 1 && f.y == 1 }

// scaleObjects 把原图坐标系下的检测框换算到缩放后的图像上
func scaleObjects(objects []mask.DetectedObject, f scaleFactor) []mask.DetectedObject {
	if f.identity() {
		return objects
	}
	out := make([]mask.DetectedObject, len(objects))
	for i, o := range objects {
		o.BBox = mask.BoundingBox{
			X:      o.BBox.X * f.x,
			Y:      o.BBox.Y * f.y,
			Width:  o.BBox.Width * f.x,
			Height: o.BBox.Height * f.y,
		}
		out[i] = o
	}
	return out
}

func (s *CutoutService) removeLocal(ctx context.Context, req *CutoutRequest, img image.Image, scale scaleFactor, tracker *Tracker) (image.Image, *mask.Mask, []mask.DetectedObject, error) {
	strategy, err := mask.ParseStrategy(req.Strategy)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}

	buf := mask.FromImage(img)
	params := mask.Params{
		Strategy: strategy,
		Refine:   mask.Refiner{Radius: s.radius(strategy, req.Radius), FloodFill: s.cfg.FloodFill},
	}

	var loader interface{ EnsureLoaded(context.Context) error }
	switch {
	case strategy == mask.SegmentationLabels:
		if s.segmenter == nil {
			return nil, nil, nil, fmt.Errorf("%w: segmenter not configured", mask.ErrExternalModelUnavailable)
		}
		loader = s.segmenter
	case strategy == mask.BoundingBoxes && len(req.Objects) == 0:
		if s.detector == nil {
			return nil, nil, nil, fmt.Errorf("%w: detector not configured", mask.ErrExternalModelUnavailable)
		}
		loader = s.detector
	}
	if loader != nil {
		if err := tracker.Transition(StateLoadingModel); err != nil {
			return nil, nil, nil, err
		}
		if err := loader.EnsureLoaded(ctx); err != nil {
			return nil, nil, nil, err
		}
	}
	if err := tracker.Transition(StateProcessing); err != nil {
		return nil, nil, nil, err
	}

	switch strategy {
	case mask.ColorCluster:
		params.ColorThreshold = s.threshold(req.Threshold, s.cfg.ColorThreshold)
	case mask.SegmentationLabels:
		encoded, err := encodePNG(buf.Image())
		if err != nil {
			return nil, nil, nil, err
		}
		params.Labels, err = s.segmenter.Segment(ctx, encoded, buf.Width, buf.Height)
		if err != nil {
			return nil, nil, nil, err
		}
		params.LabelThreshold = float32(s.threshold(req.Threshold, float64(s.cfg.LabelThreshold)))
	case mask.BoundingBoxes:
		// 客户端的框基于上传原图，检测服务的框基于发送的缩放图
		params.Objects = scaleObjects(req.Objects, scale)
		if len(params.Objects) == 0 {
			encoded, err := encodePNG(buf.Image())
			if err != nil {
				return nil, nil, nil, err
			}
			params.Objects, err = s.detector.Detect(ctx, encoded)
			if err != nil {
				return nil, nil, nil, err
			}
		}
		params.MinScore = s.threshold(req.Threshold, s.cfg.MinScore)
		params.Limit = s.cfg.MaxObjects
		params.Selected = req.Selected
	}

	out, err := mask.Run(ctx, buf, params)
	if err != nil {
		return nil, nil, nil, err
	}
	utils.Logger.Debug("mask refined",
		zap.Int("radius", params.Refine.Radius),
		zap.Int("foreground", out.Mask.Count()))
	return out.Cutout.Image(), out.Mask, out.Objects, nil
}

// removeRemote 交给 remove.bg，前景取 alpha 非零的像素
func (s *CutoutService) removeRemote(ctx context.Context, req *CutoutRequest) (image.Image, *mask.Mask, error) {
	if s.remover == nil {
		return nil, nil, fmt.Errorf("%w: remove.bg not configured", mask.ErrExternalModelUnavailable)
	}
	data, err := s.remover.Remove(ctx, req.Data, req.Filename, req.APIKey)
	if err != nil {
		return nil, nil, err
	}
	img, _, err := DecodeImage(data, s.cfg.MaxPixels)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: decode remove.bg result: %v", mask.ErrExternalModelUnavailable, err)
	}
	img, _ = Downscale(img, s.cfg.MaxWidth, s.cfg.MaxHeight)

	buf := mask.FromImage(img)
	m := mask.NewMask(buf.Width, buf.Height)
	for i := range m.Bits {
		if buf.Pix[i*4+3] > 0 {
			m.Bits[i] = mask.Foreground
		}
	}
	if m.Count() == 0 {
		return nil, nil, mask.ErrNoForegroundDetected
	}
	return buf.Image(), m, nil
}

// Edges 生成 Sobel 边缘图并保存
func (s *CutoutService) Edges(ctx context.Context, data []byte, threshold float64) (*model.EdgeResult, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	img, _, err := DecodeImage(data, s.cfg.MaxPixels)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}
	img, _ = Downscale(img, s.cfg.MaxWidth, s.cfg.MaxHeight)

	threshold = s.threshold(threshold, s.cfg.EdgeThreshold)
	edges, err := mask.EdgeMap(ctx, mask.FromImage(img), threshold)
	if err != nil {
		return nil, err
	}
	encoded, _, err := EncodeImage(edges.Image(), "png", 0)
	if err != nil {
		return nil, err
	}

	result := &model.EdgeResult{
		Width:     edges.Width,
		Height:    edges.Height,
		Threshold: threshold,
	}
	filename, err := s.store.Save(ctx, encoded, "png")
	if err != nil {
		return nil, err
	}
	result.Filename = filename
	result.ImageURL = ImageURL(filename)
	return result, nil
}

func (s *CutoutService) radius(strategy mask.Strategy, override *int) int {
	if override != nil && *override >= 0 {
		return *override
	}
	switch strategy {
	case mask.SegmentationLabels:
		return s.cfg.LabelRadius
	case mask.BoundingBoxes:
		return s.cfg.BoxRadius
	default:
		return s.cfg.ColorRadius
	}
}

func (s *CutoutService) threshold(requested, fallback float64) float64 {
	if requested > 0 {
		return requested
	}
	return fallback
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("%w: %v", mask.ErrEncodingFailure, err)
	}
	return buf.Bytes(), nil
}

// boundingBox 前景像素的外接矩形，没有前景时为零值
func boundingBox(m *mask.Mask) model.BBox {
	r := m.Bounds()
	return model.BBox{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

func toModelObjects(objects []mask.DetectedObject, width, height int) []model.Object {
	if len(objects) == 0 {
		return nil
	}
	out := make([]model.Object, 0, len(objects))
	for _, o := range objects {
		r := o.BBox.Clamp(width, height)
		out = append(out, model.Object{
			Class: o.Class,
			Score: o.Score,
			BBox:  model.BBox{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()},
		})
	}
	return out
}
