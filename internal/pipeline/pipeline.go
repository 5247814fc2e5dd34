package pipeline

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	sha256 "github.com/minio/sha256-simd"

	"logsplit/internal/diag"
	"logsplit/internal/rate"
	"logsplit/internal/source"
	"logsplit/pkg/contract"
)

// - 单线程同步：Reader 一次读入全部输入，Splitter 逐个产出分片交给 Writer。
// - 首错中止：任一分片写出失败立即返回，已写出的分片保留。
// - 旁路观测：Writer 被包装，每个分片记录 writer/finish 事件（大小与 sha256）、计数与终端提示。

// Components 聚合运行所需的原子组件。
type Components struct {
	Reader   contract.Reader
	Splitter contract.Splitter
	Writer   contract.Writer
}

// Settings 运行期配置（最小必要）。
type Settings struct {
	// Input: 输入路径；"-" 表示 STDIN。
	Input  string
	Method contract.Method
	// Sink: 输出实现名，用于日志与限速分组。
	Sink string
	// Gate: 可选写出限速；nil 表示不限。
	Gate rate.Gate
}

// Run 执行：Reader → Source → Splitter → Writer。
// 返回的 Stats 在出错时反映已成功写出的部分。
func Run(ctx context.Context, comp Components, set Settings, logger *diag.Logger) (contract.Stats, error) {
	if err := sanity(comp, set); err != nil {
		return contract.Stats{}, fmt.Errorf("sanity: %w", err)
	}
	run := logger.StartWithKV("pipeline", "run", set.Input, map[string]string{
		"method": string(set.Method),
		"sink":   set.Sink,
	})

	rt := logger.StartWith("reader", "read_all", set.Input)
	data, err := comp.Reader.ReadAll(ctx, set.Input)
	if err != nil {
		fail(logger, "reader", err, rt, set.Input)
		return contract.Stats{}, fmt.Errorf("read %s: %w", set.Input, err)
	}
	rt.Finish("read_all", int64(len(data)))
	diag.IncOp("reader", "finish", "success")

	ow := &observer{
		next:   comp.Writer,
		logger: logger,
		term:   diag.GetTerminal(),
		gate:   set.Gate,
		key:    rate.LimitKey(set.Sink),
	}
	st := logger.StartWith("splitter", string(set.Method), set.Input)
	stats, err := comp.Splitter.Split(ctx, source.New(data), ow)
	if err != nil {
		fail(logger, "splitter", err, st, set.Input)
		return stats, fmt.Errorf("split: %w", err)
	}
	st.FinishKV(string(set.Method), int64(stats.Files), map[string]string{
		"bytes": strconv.FormatInt(stats.Bytes, 10),
	})
	diag.IncOp("splitter", "finish", "success")

	if t0 := run.Since(); t0 != nil {
		diag.ObserveDuration("pipeline", "run", time.Since(*t0).Milliseconds())
	}
	run.FinishKV("summary", int64(stats.Files), diag.Snapshot().Flat())
	return stats, nil
}

func fail(logger *diag.Logger, comp string, err error, t *diag.Timer, fileID string) {
	code := diag.Classify(err)
	logger.ErrorWith(comp, string(code), err.Error(), t.Since(), fileID)
	diag.IncOp(comp, "error", "error")
	if code != diag.CodeUnknown {
		diag.IncError(comp, string(code))
	}
}

func sanity(c Components, s Settings) error {
	if c.Reader == nil || c.Splitter == nil || c.Writer == nil {
		return errors.New("pipeline: missing components")
	}
	if s.Input == "" {
		return errors.New("pipeline: empty input")
	}
	return nil
}

// observer 包装 Writer：透传字节，同时统计大小与摘要。
// 实现 contract.Notifier，把拆分器的提示转发到日志与终端。
type observer struct {
	next   contract.Writer
	logger *diag.Logger
	term   *diag.Terminal
	gate   rate.Gate
	key    rate.LimitKey
}

var (
	_ contract.Writer   = (*observer)(nil)
	_ contract.Notifier = (*observer)(nil)
)

func (o *observer) Write(ctx context.Context, id contract.ArtifactID, r io.Reader) error {
	if err := o.throttle(ctx, id, r); err != nil {
		return err
	}
	t := o.logger.StartWith("writer", "write", string(id))
	h := sha256.New()
	cr := &countingReader{r: io.TeeReader(r, h)}
	if err := o.next.Write(ctx, id, cr); err != nil {
		fail(o.logger, "writer", err, t, string(id))
		return err
	}
	t.FinishKV("write", cr.n, map[string]string{
		"bytes":  strconv.FormatInt(cr.n, 10),
		"sha256": hex.EncodeToString(h.Sum(nil)),
	})
	diag.IncOp("writer", "finish", "success")
	if t0 := t.Since(); t0 != nil {
		diag.ObserveDuration("writer", "write", time.Since(*t0).Milliseconds())
	}
	o.term.FileWritten(string(id), cr.n)
	return nil
}

// throttle 在写出前向限速闸门申请额度；分片大小取自 Len（拆分器传入 *bytes.Reader）。
func (o *observer) throttle(ctx context.Context, id contract.ArtifactID, r io.Reader) error {
	if o.gate == nil {
		return nil
	}
	var size int64
	if l, ok := r.(interface{ Len() int }); ok {
		size = int64(l.Len())
	}
	t := o.logger.StartWith("rate", "wait", string(id))
	if err := o.gate.Wait(ctx, rate.Ask{Key: o.key, Files: 1, Bytes: size}); err != nil {
		fail(o.logger, "rate", err, t, string(id))
		return err
	}
	if t0 := t.Since(); t0 != nil {
		diag.ObserveDuration("rate", "wait", time.Since(*t0).Milliseconds())
	}
	return nil
}

func (o *observer) Warn(msg string) {
	o.logger.Warn("splitter", msg, nil)
	diag.IncOp("splitter", "warn", "warn")
	o.term.Warn(msg)
	contract.Warn(o.next, msg)
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
