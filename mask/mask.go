package mask

import (
	"fmt"
	"image"
)

const (
	Background uint8 = 0
	Foreground uint8 = 1
)

// Mask 单通道二值掩码，0 为背景，1 为前景
type Mask struct {
	Bits   []uint8
	Width  int
	Height int
}

// NewMask 创建全背景掩码
func NewMask(width, height int) *Mask {
	return &Mask{
		Bits:   make([]uint8, width*height),
		Width:  width,
		Height: height,
	}
}

// Validate 检查长度和取值范围
func (m *Mask) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: nil mask", ErrShapeMismatch)
	}
	if m.Width < 0 || m.Height < 0 {
		return fmt.Errorf("%w: negative size %dx%d", ErrShapeMismatch, m.Width, m.Height)
	}
	if want := m.Width * m.Height; len(m.Bits) != want {
		return shapeError("mask", want, len(m.Bits))
	}
	for i, v := range m.Bits {
		if v > Foreground {
			return fmt.Errorf("%w: mask value %d at %d", ErrShapeMismatch, v, i)
		}
	}
	return nil
}

func (m *Mask) checkSize(width, height int) error {
	if m.Width != width || m.Height != height {
		return fmt.Errorf("%w: mask %dx%d, image %dx%d", ErrShapeMismatch, m.Width, m.Height, width, height)
	}
	return m.Validate()
}

func (m *Mask) At(x, y int) uint8 {
	return m.Bits[y*m.Width+x]
}

func (m *Mask) Set(x, y int, v uint8) {
	m.Bits[y*m.Width+x] = v
}

func (m *Mask) Fill(v uint8) {
	for i := range m.Bits {
		m.Bits[i] = v
	}
}

// Count 前景像素数
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Bits {
		if v == Foreground {
			n++
		}
	}
	return n
}

func (m *Mask) Clone() *Mask {
	bits := make([]uint8, len(m.Bits))
	copy(bits, m.Bits)
	return &Mask{Bits: bits, Width: m.Width, Height: m.Height}
}

// Bounds 前景的外接矩形，没有前景时返回空矩形
func (m *Mask) Bounds() image.Rectangle {
	minX, minY := m.Width, m.Height
	maxX, maxY := -1, -1
	for y := 0; y < m.Height; y++ {
		row := m.Bits[y*m.Width : (y+1)*m.Width]
		for x, v := range row {
			if v != Foreground {
				continue
			}
			minX = min(minX, x)
			minY = min(minY, y)
			maxX = max(maxX, x)
			maxY = max(maxY, y)
		}
	}
	if maxX < 0 {
		return image.Rectangle{}
	}
	return image.Rect(minX, minY, maxX+1, maxY+1)
}
