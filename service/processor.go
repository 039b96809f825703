package service

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/dany616/bgenius-background-processor/mask"
	"github.com/dany616/bgenius-background-processor/model"
	"github.com/dany616/bgenius-background-processor/utils"
	"github.com/disintegration/imaging"
	"go.uber.org/zap"
)

type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) ([]byte, error)
}

// GenerateOptions 去背景后生成新背景
type GenerateOptions struct {
	Cutout         CutoutRequest
	Prompt         string
	NegativePrompt string
	Style          string
	Steps          int
	Seed           int64
}

// Processor 先去背景，再生成背景并把主体叠加回去
type Processor struct {
	cutout    *CutoutService
	generator Generator
	store     ImageStore
}

func NewProcessor(cutout *CutoutService, generator Generator, store ImageStore) *Processor {
	return &Processor{cutout: cutout, generator: generator, store: store}
}

func (p *Processor) Process(ctx context.Context, opts GenerateOptions) (*model.GenerateResult, error) {
	if strings.TrimSpace(opts.Prompt) == "" {
		return nil, ErrInvalidPrompt
	}

	req := opts.Cutout
	req.Format = "png"
	cut, err := p.cutout.Remove(ctx, &req, nil)
	if err != nil {
		return nil, fmt.Errorf("background removal failed: %w", err)
	}
	cutoutData, err := p.store.Load(ctx, cut.Filename)
	if err != nil {
		return nil, fmt.Errorf("load cutout: %w", err)
	}

	style := opts.Style
	if style == "" {
		style = DefaultStyle
	}
	generated, err := p.generator.Generate(ctx, GenerateRequest{
		Prompt:         opts.Prompt,
		NegativePrompt: opts.NegativePrompt,
		Style:          style,
		Steps:          opts.Steps,
		Seed:           opts.Seed,
		Image:          cutoutData,
		APIKey:         opts.Cutout.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("background generation failed: %w", err)
	}

	composed, err := Compose(cutoutData, generated)
	if err != nil {
		return nil, err
	}
	encoded, _, err := EncodeImage(composed, "png", 0)
	if err != nil {
		return nil, err
	}
	filename, err := p.store.Save(ctx, encoded, "png")
	if err != nil {
		return nil, err
	}

	utils.Logger.Info("background generated",
		zap.String("cutout", cut.Filename),
		zap.String("result", filename),
		zap.String("style", style))

	return &model.GenerateResult{
		Cutout:   cut,
		ImageURL: ImageURL(filename),
		Filename: filename,
		Prompt:   opts.Prompt,
		Seed:     opts.Seed,
	}, nil
}

// Compose 把背景裁剪缩放到主体尺寸，再把带透明通道的主体叠加上去
func Compose(cutoutData, backgroundData []byte) (image.Image, error) {
	subject, _, err := DecodeImage(cutoutData, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: decode cutout: %v", ErrInvalidImage, err)
	}
	background, _, err := DecodeImage(backgroundData, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: decode generated background: %v", mask.ErrExternalModelUnavailable, err)
	}

	b := subject.Bounds()
	canvas := imaging.Fill(background, b.Dx(), b.Dy(), imaging.Center, imaging.Lanczos)
	return imaging.Overlay(canvas, subject, image.Pt(0, 0), 1.0), nil
}
