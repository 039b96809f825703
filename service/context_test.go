package service

import (
	"context"
	"testing"
)

// testContext 返回一个在测试结束时取消的 context，等价于 Go 1.24 的 testContext(t)。
func testContext(t testing.TB) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
