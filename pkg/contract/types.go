package contract

import (
	"strings"
	"time"
)

// FileID: 逻辑文件标识（通常为相对路径或对象键，需规范化，跨平台一致）。
type FileID string

// Method: 拆分方法。
type Method string

const (
	MethodLines Method = "lines"
	MethodBytes Method = "bytes"
	MethodDate  Method = "date"
)

// Granularity: 日期方法的桶宽。
type Granularity string

const (
	Minute Granularity = "minute"
	Hour   Granularity = "hour"
	Day    Granularity = "day"
	Month  Granularity = "month"
)

// Minutes 返回桶宽分钟数；未知取值返回 0。
// month 为 30 天（365/12 的整数近似）。
func (g Granularity) Minutes() int64 {
	switch Granularity(strings.ToLower(string(g))) {
	case Minute:
		return 1
	case Hour:
		return 60
	case Day:
		return 60 * 24
	case Month:
		return 60 * 24 * (365 / 12)
	default:
		return 0
	}
}

// Duration 返回桶宽对应的时长。
func (g Granularity) Duration() time.Duration {
	return time.Duration(g.Minutes()) * time.Minute
}

// OutOfOrder: 日期方法中早于当前桶下界的行的处理策略。
type OutOfOrder string

const (
	// OutOfOrderDiscard 清空当前已缓冲内容并丢弃该行（默认）。
	OutOfOrderDiscard OutOfOrder = "discard"
	// OutOfOrderKeep 将迟到行并入当前桶。
	OutOfOrderKeep OutOfOrder = "keep"
)

// SplitOptions: 拆分器的运行期参数（一次装配，运行期不变）。
type SplitOptions struct {
	Method   Method
	BaseName string

	// lines/bytes
	LowerBound uint64
	UpperBound uint64
	ChunkSize  uint64

	// date；空字符串表示未设置（无界）。
	Granularity   Granularity
	BeginTime     string
	EndTime       string
	TimestampMode string
	OutOfOrder    OutOfOrder
}

// Stats: 一次拆分的产出统计。
type Stats struct {
	Files int
	Bytes int64
}
