package contract

import "errors"

// 拆分/写出相关最小错误分类。调用方以 errors.Is 匹配。
var (
	// ErrInputRead: 输入文件不可读（致命，立即中止）。
	ErrInputRead = errors.New("input read failed")
	// ErrFileExists: 输出目标已存在（致命；拒绝覆盖/追加）。
	ErrFileExists = errors.New("output already exists")
	// ErrIO: 输出创建后写入/落盘失败（致命）。
	ErrIO = errors.New("output io failed")
	// ErrTimestampParse: 时间戳无法按固定格式解析（可恢复：回退到无界哨兵）。
	ErrTimestampParse = errors.New("timestamp parse failed")
	// ErrInvalidMethod: 未知拆分方法（仅诊断，不做任何工作）。
	ErrInvalidMethod = errors.New("invalid method")
	// ErrPathInvalid: 目标标识映射为无效/越界路径（例如绝对路径或 '..' 逃逸）。
	ErrPathInvalid = errors.New("path invalid")
	// ErrInvariantViolation: 领域不变量违例（通用哨兵）。
	ErrInvariantViolation = errors.New("invariant violation")
)
