package mask

import (
	"fmt"
	"image"
	"image/draw"
)

// PixelBuffer 行优先的 RGBA 像素数据，长度为 Width*Height*4
type PixelBuffer struct {
	Pix    []uint8
	Width  int
	Height int
}

// NewPixelBuffer 创建全透明的缓冲区
func NewPixelBuffer(width, height int) PixelBuffer {
	return PixelBuffer{
		Pix:    make([]uint8, width*height*4),
		Width:  width,
		Height: height,
	}
}

// Validate 检查缓冲区长度与宽高是否一致
func (b PixelBuffer) Validate() error {
	if b.Width < 0 || b.Height < 0 {
		return fmt.Errorf("%w: negative size %dx%d", ErrShapeMismatch, b.Width, b.Height)
	}
	if want := b.Width * b.Height * 4; len(b.Pix) != want {
		return shapeError("pixel buffer", want, len(b.Pix))
	}
	return nil
}

func (b PixelBuffer) Clone() PixelBuffer {
	pix := make([]uint8, len(b.Pix))
	copy(pix, b.Pix)
	return PixelBuffer{Pix: pix, Width: b.Width, Height: b.Height}
}

// FromImage 把任意图像转换为非预乘的 RGBA 缓冲区
func FromImage(img image.Image) PixelBuffer {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	nrgba, ok := img.(*image.NRGBA)
	if !ok {
		nrgba = image.NewNRGBA(image.Rect(0, 0, w, h))
		draw.Draw(nrgba, nrgba.Bounds(), img, b.Min, draw.Src)
		b = nrgba.Bounds()
	}

	buf := NewPixelBuffer(w, h)
	for y := 0; y < h; y++ {
		src := nrgba.PixOffset(b.Min.X, b.Min.Y+y)
		copy(buf.Pix[y*w*4:(y+1)*w*4], nrgba.Pix[src:src+w*4])
	}
	return buf
}

// Image 把缓冲区包装为 *image.NRGBA（共享底层数据）
func (b PixelBuffer) Image() *image.NRGBA {
	return &image.NRGBA{
		Pix:    b.Pix,
		Stride: b.Width * 4,
		Rect:   image.Rect(0, 0, b.Width, b.Height),
	}
}
