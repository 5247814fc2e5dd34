package timestamp

import (
	"bytes"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"logsplit/pkg/contract"
)

// Layout 为唯一接受的时间戳格式 YYYY-MM-DDTHH:MM:SS±HH:MM。
const Layout = "2006-01-02T15:04:05-07:00"

// PrefixLen 为前缀提取的固定宽度。
const PrefixLen = len(Layout)

// 无界哨兵：最小/最大可表示时刻（UTC）。
var (
	Min = time.Date(-262143, time.January, 1, 0, 0, 0, 0, time.UTC)
	Max = time.Date(262142, time.December, 31, 23, 59, 59, 999999999, time.UTC)
)

// Extractor 从一行中提取时间戳；无法提取时 ok=false，从不报错。
type Extractor interface {
	Extract(line []byte) (ts time.Time, ok bool)
}

// Mode 选择提取器实现。
const (
	ModePrefix = "prefix"
	ModeField  = "field"
)

// ForMode 返回 mode 对应的提取器；空串等价于 prefix。
func ForMode(mode string) (Extractor, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", ModePrefix:
		return Prefix{}, nil
	case ModeField:
		return Field{}, nil
	default:
		return nil, fmt.Errorf("timestamp: unknown mode %q", mode)
	}
}

// Prefix 取行首固定 25 字节解析，不关心实际分隔符。
type Prefix struct{}

func (Prefix) Extract(line []byte) (time.Time, bool) {
	if len(line) < PrefixLen {
		return time.Time{}, false
	}
	return parseBytes(line[:PrefixLen])
}

// Field 取行首第一个空白分隔字段解析；字段必须恰好是一个完整时间戳。
type Field struct{}

func (Field) Extract(line []byte) (time.Time, bool) {
	end := bytes.IndexAny(line, " \t\r\n")
	if end < 0 {
		end = len(line)
	}
	if end != PrefixLen {
		return time.Time{}, false
	}
	return parseBytes(line[:end])
}

func parseBytes(p []byte) (time.Time, bool) {
	if !utf8.Valid(p) {
		return time.Time{}, false
	}
	ts, err := time.Parse(Layout, string(p))
	if err != nil {
		return time.Time{}, false
	}
	return ts.UTC(), true
}

// Parse 按固定格式解析边界参数（begin_time/end_time），结果为 UTC。
func Parse(s string) (time.Time, error) {
	ts, err := time.Parse(Layout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q (format: YYYY-MM-DDTHH:MM:SS+00:00)", contract.ErrTimestampParse, s)
	}
	return ts.UTC(), nil
}
