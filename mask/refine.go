package mask

import (
	"context"
)

// Refiner 清理初始掩码：先从图像边缘做区域填充，再做形态学开运算
type Refiner struct {
	Radius    int
	FloodFill bool
}

func (r Refiner) Refine(ctx context.Context, m *Mask) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if r.FloodFill {
		FloodFillBorder(m)
	}
	if r.Radius > 0 {
		return Open(ctx, m, r.Radius)
	}
	return nil
}

// FloodFillBorder 把所有边缘像素强制为背景，并沿四邻域在已是背景的像素间做广度优先填充。
// 只写入 0，因此重复执行结果不变。返回与边缘连通的背景像素数。
func FloodFillBorder(m *Mask) int {
	w, h := m.Width, m.Height
	if w == 0 || h == 0 {
		return 0
	}

	visited := make([]bool, w*h)
	queue := make([]int, 0, 2*w+2*h)
	push := func(i int) {
		if !visited[i] {
			visited[i] = true
			queue = append(queue, i)
		}
	}

	for x := 0; x < w; x++ {
		push(x)
		push((h-1)*w + x)
	}
	for y := 1; y < h-1; y++ {
		push(y * w)
		push(y*w + w - 1)
	}

	for head := 0; head < len(queue); head++ {
		i := queue[head]
		m.Bits[i] = Background

		x, y := i%w, i/w
		if y > 0 && m.Bits[i-w] == Background {
			push(i - w)
		}
		if y < h-1 && m.Bits[i+w] == Background {
			push(i + w)
		}
		if x > 0 && m.Bits[i-1] == Background {
			push(i - 1)
		}
		if x < w-1 && m.Bits[i+1] == Background {
			push(i + 1)
		}
	}
	return len(queue)
}

// Open 开运算（先腐蚀后膨胀），原地修改 m。
// 如果开运算会抹掉全部前景，则保留原掩码：主体小于结构元素时不应被清空。
func Open(ctx context.Context, m *Mask, radius int) error {
	if err := m.Validate(); err != nil {
		return err
	}

	before := m.Count()
	eroded, err := Erode(ctx, m, radius)
	if err != nil {
		return err
	}
	opened, err := Dilate(ctx, eroded, radius)
	if err != nil {
		return err
	}

	if before > 0 && opened.Count() == 0 {
		return nil
	}
	copy(m.Bits, opened.Bits)
	return nil
}

// Erode 邻域内存在背景的前景像素变为背景
func Erode(ctx context.Context, m *Mask, radius int) (*Mask, error) {
	return morph(ctx, m, radius, Foreground, Background)
}

// Dilate 邻域内存在前景的背景像素变为前景
func Dilate(ctx context.Context, m *Mask, radius int) (*Mask, error) {
	return morph(ctx, m, radius, Background, Foreground)
}
