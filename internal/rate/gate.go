// Package rate 提供按分组的写出限速闸门（令牌桶，按分钟补充）。
package rate

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// LimitKey: 限流分组键（例如 sink 名称）。
type LimitKey string

// Limits: 每分组的限额配置。0 表示该维度不启用。
type Limits struct {
	FilesPerMin int // 每分钟写出的分片数
	BytesPerMin int // 每分钟写出的字节数
}

// Ask: 一次放行申请。
type Ask struct {
	Key   LimitKey
	Files int   // 默认为 1；必须 >=1
	Bytes int64 // 分片大小（>=0）
}

// Gate: 限流闸门（并发安全）。
type Gate interface {
	// Wait: 阻塞直到额度可用或 ctx 取消。
	Wait(ctx context.Context, a Ask) error
	// Try: 非阻塞尝试；不足时返回 false。
	Try(a Ask) bool
}

// Snapshoter: 可选诊断接口。
type Snapshoter interface {
	Snapshot(key LimitKey) (filesAvail, bytesAvail int)
}

// NewGate: 从静态配置构造闸门；clk 为空则使用 time.Now。
func NewGate(m map[LimitKey]Limits, clk func() time.Time) Gate {
	if clk == nil {
		clk = time.Now
	}
	g := &gate{clk: clk, m: make(map[LimitKey]*entry, len(m))}
	now := clk()
	for k, lim := range m {
		g.m[k] = newEntry(lim, now)
	}
	return g
}

type gate struct {
	clk func() time.Time
	mu  sync.Mutex
	m   map[LimitKey]*entry
}

type entry struct {
	mu    sync.Mutex
	files bucket
	bytes bucket
}

type bucket struct {
	cap   int
	level float64
	rate  float64
	last  time.Time
}

func newEntry(lim Limits, now time.Time) *entry {
	return &entry{
		files: newBucket(lim.FilesPerMin, now),
		bytes: newBucket(lim.BytesPerMin, now),
	}
}

func newBucket(capacity int, now time.Time) bucket {
	if capacity <= 0 {
		return bucket{}
	}
	return bucket{cap: capacity, level: float64(capacity), rate: float64(capacity) / 60.0, last: now}
}

func (b *bucket) enabled() bool { return b.cap > 0 }

func (b *bucket) refill(now time.Time) {
	if !b.enabled() {
		return
	}
	if now.Before(b.last) {
		// 时钟回拨视为无时间流逝
		return
	}
	dt := now.Sub(b.last).Seconds()
	if dt <= 0 {
		return
	}
	b.level += dt * b.rate
	if b.level > float64(b.cap) {
		b.level = float64(b.cap)
	}
	b.last = now
}

// need 把单次申请截到桶容量：超过容量的分片等到桶满后放行，不会永久阻塞。
func (b *bucket) need(n int64) float64 {
	if n > int64(b.cap) {
		return float64(b.cap)
	}
	return float64(n)
}

func (b *bucket) canTake(n int64) bool {
	if !b.enabled() || n <= 0 {
		return true
	}
	return b.level >= b.need(n)
}

func (b *bucket) take(n int64) {
	if !b.enabled() || n <= 0 {
		return
	}
	b.level -= b.need(n)
	if b.level < 0 {
		b.level = 0
	}
}

// waitSecFor 返回达到可消费 n 还需等待的秒数；上层取两维度的最大值。
func (b *bucket) waitSecFor(n int64) float64 {
	if !b.enabled() || n <= 0 {
		return 0
	}
	deficit := b.need(n) - b.level
	if deficit <= 0 {
		return 0
	}
	return deficit / b.rate
}

func (g *gate) get(key LimitKey) *entry {
	g.mu.Lock()
	defer g.mu.Unlock()
	e := g.m[key]
	if e == nil {
		// 未配置的 key 视为不限额
		e = newEntry(Limits{}, g.clk())
		g.m[key] = e
	}
	return e
}

func validAsk(a Ask) error {
	if a.Files <= 0 || a.Bytes < 0 {
		return fmt.Errorf("rate: invalid ask files=%d bytes=%d", a.Files, a.Bytes)
	}
	return nil
}

func (g *gate) Try(a Ask) bool {
	if validAsk(a) != nil {
		return false
	}
	e := g.get(a.Key)
	now := g.clk()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.files.refill(now)
	e.bytes.refill(now)
	if e.files.canTake(int64(a.Files)) && e.bytes.canTake(a.Bytes) {
		e.files.take(int64(a.Files))
		e.bytes.take(a.Bytes)
		return true
	}
	return false
}

func (g *gate) Wait(ctx context.Context, a Ask) error {
	if err := validAsk(a); err != nil {
		return err
	}
	e := g.get(a.Key)
	// 最小睡眠粒度，避免忙等
	const minSleep = 10 * time.Millisecond
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		now := g.clk()
		e.mu.Lock()
		e.files.refill(now)
		e.bytes.refill(now)
		if e.files.canTake(int64(a.Files)) && e.bytes.canTake(a.Bytes) {
			e.files.take(int64(a.Files))
			e.bytes.take(a.Bytes)
			e.mu.Unlock()
			return nil
		}
		waitSec := e.files.waitSecFor(int64(a.Files))
		if wb := e.bytes.waitSecFor(a.Bytes); wb > waitSec {
			waitSec = wb
		}
		e.mu.Unlock()

		d := time.Duration(waitSec*float64(time.Second) + float64(minSleep))
		if d < minSleep {
			d = minSleep
		}
		if err := sleepCtx(ctx, d); err != nil {
			return err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	// 分片为最多 200ms 的步长，及时响应取消
	const step = 200 * time.Millisecond
	for d > 0 {
		s := d
		if s > step {
			s = step
		}
		t := time.NewTimer(s)
		select {
		case <-ctx.Done():
			if !t.Stop() {
				<-t.C
			}
			return ctx.Err()
		case <-t.C:
		}
		d -= s
	}
	return nil
}

// Snapshot: 返回当前可用分片数/字节数的向下取整估值（仅诊断）。
func (g *gate) Snapshot(key LimitKey) (filesAvail, bytesAvail int) {
	e := g.get(key)
	now := g.clk()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.files.refill(now)
	e.bytes.refill(now)
	return e.files.avail(), e.bytes.avail()
}

func (b *bucket) avail() int {
	switch {
	case !b.enabled(), b.level < 0:
		return 0
	case b.level > float64(b.cap):
		return b.cap
	default:
		return int(b.level)
	}
}

var _ Gate = (*gate)(nil)
var _ Snapshoter = (*gate)(nil)
