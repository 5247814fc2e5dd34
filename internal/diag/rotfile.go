package diag

import (
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogFileName 为当前日志文件名；轮转后的历史文件由 lumberjack 附加时间戳。
const LogFileName = "logsplit.log"

// NewRotatingFile 返回写入 dir/logsplit.log 的按大小轮转文件。
// maxSizeMB<=0 时取 10MB；maxBackups<=0 表示保留全部历史文件。
func NewRotatingFile(dir string, maxSizeMB, maxBackups int) *lumberjack.Logger {
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	if maxBackups < 0 {
		maxBackups = 0
	}
	return &lumberjack.Logger{
		Filename:   filepath.Join(dir, LogFileName),
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
	}
}
