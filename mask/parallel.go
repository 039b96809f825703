package mask

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// 每处理这么多行检查一次取消
const cancelCheckRows = 32

// forEachRow 把 [0,height) 按行切分为若干段并发执行 fn。
// fn 只能写入自己负责的行。
func forEachRow(ctx context.Context, height int, fn func(y int)) error {
	if height <= 0 {
		return ctx.Err()
	}

	workers := min(runtime.GOMAXPROCS(0), height)
	band := (height + workers - 1) / workers

	g, ctx := errgroup.WithContext(ctx)
	for start := 0; start < height; start += band {
		start := start
		end := min(start+band, height)
		g.Go(func() error {
			for y := start; y < end; y++ {
				if (y-start)%cancelCheckRows == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				fn(y)
			}
			return nil
		})
	}
	return g.Wait()
}
