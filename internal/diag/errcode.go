package diag

import (
	"context"
	"errors"
	"os"
	"time"

	"logsplit/pkg/contract"
)

// Code 是最小错误分类代码。
// 仅用于日志/指标汇总，与退出码解耦。
type Code string

const (
	CodeUnknown   Code = "unknown"
	CodeInput     Code = "input"
	CodeExists    Code = "exists"
	CodeIO        Code = "io"
	CodeParse     Code = "parse"
	CodeInvariant Code = "invariant"
	CodeConfig    Code = "config"
	CodeCancel    Code = "cancel"
)

// Classify 将错误归为最小分类。
// 仅依赖哨兵错误与标准库错误类型，不做字符串匹配。
func Classify(err error) Code {
	if err == nil {
		return CodeUnknown
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CodeCancel
	case errors.Is(err, contract.ErrInputRead):
		return CodeInput
	case errors.Is(err, contract.ErrFileExists):
		return CodeExists
	case errors.Is(err, contract.ErrIO):
		return CodeIO
	case errors.Is(err, contract.ErrTimestampParse):
		return CodeParse
	case errors.Is(err, contract.ErrInvariantViolation),
		errors.Is(err, contract.ErrInvalidMethod),
		errors.Is(err, contract.ErrPathInvalid):
		return CodeInvariant
	}
	var perr *os.PathError
	if errors.As(err, &perr) {
		return CodeIO
	}
	return CodeUnknown
}

// NowUTC 返回 RFC3339 UTC 时间字符串。
func NowUTC() string { return time.Now().UTC().Format(time.RFC3339) }
