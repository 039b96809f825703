package mask

import "fmt"

// Composite 返回新的缓冲区：掩码为背景处 alpha 置 0，其余通道不变
func Composite(buf PixelBuffer, m *Mask) (PixelBuffer, error) {
	if err := checkPair(buf, m); err != nil {
		return PixelBuffer{}, err
	}
	out := buf.Clone()
	applyAlpha(out, m)
	return out, nil
}

func checkPair(buf PixelBuffer, m *Mask) error {
	if err := buf.Validate(); err != nil {
		return err
	}
	if m == nil {
		return fmt.Errorf("%w: nil mask", ErrShapeMismatch)
	}
	return m.checkSize(buf.Width, buf.Height)
}

func applyAlpha(buf PixelBuffer, m *Mask) {
	for i, v := range m.Bits {
		if v == Background {
			buf.Pix[i*4+3] = 0
		}
	}
}
