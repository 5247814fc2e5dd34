package diag

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// LogOptions 控制日志落盘位置与轮转。
type LogOptions struct {
	Dir        string
	MaxSizeMB  int
	MaxBackups int
	Level      string
}

// Logger 为结构化日志器：单行 JSON；支持级别过滤。
// 事件字段：level, ts, corr_id, comp, stage, code, dur_ms, count, file_id, msg, kv。
type Logger struct {
	corrID string
	lg     *logrus.Logger
	closer io.Closer
}

// NewCorrID 生成一次运行的关联 ID。
func NewCorrID() string { return uuid.NewString() }

// NewLogger 通过配置的 level 初始化，并将日志写入默认目录 logs，10MB 轮转。
func NewLogger(corrID, level string) *Logger {
	return NewLoggerWith(corrID, LogOptions{Dir: "logs", Level: level})
}

// NewLoggerWith 按选项创建落盘日志器。
func NewLoggerWith(corrID string, opts LogOptions) *Logger {
	dir := strings.TrimSpace(opts.Dir)
	if dir == "" {
		dir = "logs"
	}
	sink := NewRotatingFile(dir, opts.MaxSizeMB, opts.MaxBackups)
	l := NewLoggerWriter(corrID, opts.Level, sink)
	l.closer = sink
	return l
}

// NewLoggerWriter 将日志写到任意 io.Writer（nil 时为 stderr）。
func NewLoggerWriter(corrID, level string, w io.Writer) *Logger {
	if w == nil {
		w = os.Stderr
	}
	lg := logrus.New()
	lg.SetOutput(w)
	lg.SetLevel(parseLevel(level))
	lg.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat:   time.RFC3339,
		DisableHTMLEscape: true,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime: "ts",
		},
	})
	return &Logger{corrID: corrID, lg: lg}
}

func parseLevel(s string) logrus.Level {
	lv, err := logrus.ParseLevel(strings.TrimSpace(s))
	if err != nil {
		return logrus.InfoLevel
	}
	return lv
}

// CorrID 返回当前关联 ID。
func (l *Logger) CorrID() string { return l.corrID }

// Close 关闭落盘文件（若有）。
func (l *Logger) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// Event 为标准事件结构。
type Event struct {
	Comp   string
	Stage  string // start|finish|error|warn
	Code   string
	DurMS  int64
	Count  int64
	FileID string
	Msg    string
	KV     map[string]string
}

func (l *Logger) log(lv logrus.Level, ev Event) {
	if l == nil || !l.lg.IsLevelEnabled(lv) {
		return
	}
	f := logrus.Fields{
		"corr_id": l.corrID,
		"comp":    ev.Comp,
		"stage":   ev.Stage,
	}
	if ev.Code != "" {
		f["code"] = ev.Code
	}
	if ev.DurMS > 0 {
		f["dur_ms"] = ev.DurMS
	}
	if ev.Count > 0 {
		f["count"] = ev.Count
	}
	if ev.FileID != "" {
		f["file_id"] = ev.FileID
	}
	if len(ev.KV) > 0 {
		f["kv"] = ev.KV
	}
	l.lg.WithFields(f).Log(lv, ev.Msg)
}

// Start 记录 start 事件；返回计时器用于 Finish。
func (l *Logger) Start(comp, msg string) *Timer {
	l.log(logrus.InfoLevel, Event{Comp: comp, Stage: "start", Msg: msg})
	return &Timer{l: l, comp: comp, t0: time.Now()}
}

// StartWith 记录带 file_id 的 start。
func (l *Logger) StartWith(comp, msg, fileID string) *Timer {
	l.log(logrus.InfoLevel, Event{Comp: comp, Stage: "start", FileID: fileID, Msg: msg})
	return &Timer{l: l, comp: comp, fileID: fileID, t0: time.Now()}
}

// StartWithKV 记录带 file_id 与键值的 start。
func (l *Logger) StartWithKV(comp, msg, fileID string, kv map[string]string) *Timer {
	l.log(logrus.InfoLevel, Event{Comp: comp, Stage: "start", FileID: fileID, Msg: msg, KV: kv})
	return &Timer{l: l, comp: comp, fileID: fileID, t0: time.Now()}
}

// Error 记录 error 事件。
func (l *Logger) Error(comp, code, msg string, durSince *time.Time) {
	l.log(logrus.ErrorLevel, Event{Comp: comp, Stage: "error", Code: code, DurMS: since(durSince), Msg: msg})
}

// ErrorWith 支持 file_id。
func (l *Logger) ErrorWith(comp, code, msg string, durSince *time.Time, fileID string) {
	l.log(logrus.ErrorLevel, Event{Comp: comp, Stage: "error", Code: code, DurMS: since(durSince), Msg: msg, FileID: fileID})
}

// ErrorWithKV 支持附带键值对（例如对象存储错误码）。
func (l *Logger) ErrorWithKV(comp, code, msg string, durSince *time.Time, fileID string, kv map[string]string) {
	l.log(logrus.ErrorLevel, Event{Comp: comp, Stage: "error", Code: code, DurMS: since(durSince), Msg: msg, FileID: fileID, KV: kv})
}

// Warn 记录非致命提示（例如边界时间回退为无界）。
func (l *Logger) Warn(comp, msg string, kv map[string]string) {
	l.log(logrus.WarnLevel, Event{Comp: comp, Stage: "warn", Msg: msg, KV: kv})
}

// InfoFinish 在已有起点的情况下记录 finish。
func (l *Logger) InfoFinish(comp, msg string, start time.Time, count int64) {
	l.log(logrus.InfoLevel, Event{Comp: comp, Stage: "finish", DurMS: time.Since(start).Milliseconds(), Count: count, Msg: msg})
}

// DebugStart 输出调试级别的 start 类事件（仅在 level=debug 时生效）。
func (l *Logger) DebugStart(comp, msg, fileID string, kv map[string]string) {
	l.log(logrus.DebugLevel, Event{Comp: comp, Stage: "start", FileID: fileID, Msg: msg, KV: kv})
}

func since(t0 *time.Time) int64 {
	if t0 == nil {
		return 0
	}
	return time.Since(*t0).Milliseconds()
}

// Timer 用于 start→finish 计时。
type Timer struct {
	l      *Logger
	comp   string
	fileID string
	t0     time.Time
}

// Finish 记录 finish；可选 count。
func (t *Timer) Finish(msg string, count int64) {
	t.FinishKV(msg, count, nil)
}

// FinishKV 记录带键值的 finish。
func (t *Timer) FinishKV(msg string, count int64, kv map[string]string) {
	if t == nil || t.l == nil {
		return
	}
	t.l.log(logrus.InfoLevel, Event{Comp: t.comp, Stage: "finish", DurMS: time.Since(t.t0).Milliseconds(), Count: count, FileID: t.fileID, Msg: msg, KV: kv})
}

// Since 返回计时起点，供 Error 计算耗时。
func (t *Timer) Since() *time.Time {
	if t == nil {
		return nil
	}
	return &t.t0
}
