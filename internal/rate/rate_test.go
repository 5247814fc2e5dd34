package rate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 超过每分钟分片数
func TestGateTryLimit(t *testing.T) {
	now := time.Unix(0, 0)
	clk := func() time.Time { return now }
	g := NewGate(map[LimitKey]Limits{"fs": {FilesPerMin: 1, BytesPerMin: 100}}, clk)
	require.True(t, g.Try(Ask{Key: "fs", Files: 1, Bytes: 30}), "首次应通过")
	assert.False(t, g.Try(Ask{Key: "fs", Files: 1, Bytes: 30}), "应因分片数拒绝")

	// 一分钟后补满
	now = now.Add(time.Minute)
	assert.True(t, g.Try(Ask{Key: "fs", Files: 1, Bytes: 30}))
}

// 字节维度与按秒补充
func TestGateBytesRefill(t *testing.T) {
	now := time.Unix(0, 0)
	clk := func() time.Time { return now }
	g := NewGate(map[LimitKey]Limits{"fs": {BytesPerMin: 60}}, clk)
	require.True(t, g.Try(Ask{Key: "fs", Files: 1, Bytes: 60}))
	assert.False(t, g.Try(Ask{Key: "fs", Files: 1, Bytes: 10}))

	now = now.Add(10 * time.Second)
	assert.True(t, g.Try(Ask{Key: "fs", Files: 1, Bytes: 10}))

	f, b := g.(Snapshoter).Snapshot("fs")
	assert.Zero(t, f, "分片维度未启用")
	assert.Zero(t, b)
}

// 超过桶容量的分片等到桶满后放行
func TestGateOversizedAsk(t *testing.T) {
	now := time.Unix(0, 0)
	clk := func() time.Time { return now }
	g := NewGate(map[LimitKey]Limits{"fs": {BytesPerMin: 10}}, clk)
	assert.True(t, g.Try(Ask{Key: "fs", Files: 1, Bytes: 1000}))
	assert.False(t, g.Try(Ask{Key: "fs", Files: 1, Bytes: 1}))
}

// 未配置的 key 不限额；非法申请被拒绝
func TestGateUnknownKeyAndInvalid(t *testing.T) {
	g := NewGate(nil, nil)
	for i := 0; i < 100; i++ {
		require.True(t, g.Try(Ask{Key: "minio", Files: 1, Bytes: 1 << 20}))
	}
	assert.False(t, g.Try(Ask{Key: "minio", Files: 0}))
	assert.Error(t, g.Wait(context.Background(), Ask{Key: "minio", Files: 1, Bytes: -1}))
}

// 取消上下文
func TestGateWaitCancel(t *testing.T) {
	now := time.Unix(0, 0)
	clk := func() time.Time { return now }
	g := NewGate(map[LimitKey]Limits{"fs": {FilesPerMin: 1}}, clk)
	require.NoError(t, g.Wait(context.Background(), Ask{Key: "fs", Files: 1}))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	assert.ErrorIs(t, g.Wait(ctx, Ask{Key: "fs", Files: 1}), context.Canceled)
}
