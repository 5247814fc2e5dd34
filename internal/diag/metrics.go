package diag

import (
	"strconv"
	"strings"
	"sync"
)

// 进程内指标：
// - op_total{comp,stage,result}
// - error_total{comp,code}
// - op_duration_ms{comp,stage}（累计）

// Metrics 为指标快照，键以 "/" 连接标签。
type Metrics struct {
	Ops        map[string]int64
	Errors     map[string]int64
	DurationMS map[string]int64
}

var (
	metricsMu sync.Mutex
	metrics   = newMetrics()
)

func newMetrics() Metrics {
	return Metrics{
		Ops:        map[string]int64{},
		Errors:     map[string]int64{},
		DurationMS: map[string]int64{},
	}
}

func key(parts ...string) string { return strings.Join(parts, "/") }

// IncOp 累加操作计数（result=success|error）。
func IncOp(comp, stage, result string) {
	metricsMu.Lock()
	metrics.Ops[key(comp, stage, result)]++
	metricsMu.Unlock()
}

// IncError 按分类累加错误计数。
func IncError(comp, code string) {
	metricsMu.Lock()
	metrics.Errors[key(comp, code)]++
	metricsMu.Unlock()
}

// ObserveDuration 累计阶段耗时（毫秒）。
func ObserveDuration(comp, stage string, durMS int64) {
	metricsMu.Lock()
	metrics.DurationMS[key(comp, stage)] += durMS
	metricsMu.Unlock()
}

// Snapshot 返回当前指标的副本。
func Snapshot() Metrics {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	out := newMetrics()
	for k, v := range metrics.Ops {
		out.Ops[k] = v
	}
	for k, v := range metrics.Errors {
		out.Errors[k] = v
	}
	for k, v := range metrics.DurationMS {
		out.DurationMS[k] = v
	}
	return out
}

// ResetMetrics 清零全部指标。
func ResetMetrics() {
	metricsMu.Lock()
	metrics = newMetrics()
	metricsMu.Unlock()
}

// Flat 将快照压平为字符串键值，便于写入日志 kv。
func (m Metrics) Flat() map[string]string {
	out := make(map[string]string, len(m.Ops)+len(m.Errors)+len(m.DurationMS))
	for k, v := range m.Ops {
		out["op_total/"+k] = strconv.FormatInt(v, 10)
	}
	for k, v := range m.Errors {
		out["error_total/"+k] = strconv.FormatInt(v, 10)
	}
	for k, v := range m.DurationMS {
		out["op_duration_ms/"+k] = strconv.FormatInt(v, 10)
	}
	return out
}
