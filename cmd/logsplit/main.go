package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	cfgpkg "logsplit/internal/config"
	"logsplit/internal/diag"
	"logsplit/internal/pipeline"
)

const (
	version = "0.1.0"
	about   = "Split a log file into chunks by line count, byte size or timestamp buckets."
)

// 便于测试替换
var pipelineRun = pipeline.Run

// exitError 携带进程退出码：1 运行期失败；3 配置/校验/装配失败。
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if args == nil {
		args = []string{}
	}
	root := newRootCmd()
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	// 开关/参数解析错误
	fprintf(os.Stderr, "参数错误: %v\n", err)
	fprintf(os.Stderr, "%s", root.UsageString())
	return 3
}

func newRootCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:           "logsplit [flags] INPUT_FILE",
		Short:         about,
		Long:          about + "\n\nINPUT_FILE may be \"-\" for standard input.",
		Version:       version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSplit(cmd.Context(), cmd.Flags(), configPath, args)
		},
	}
	f := cmd.Flags()
	f.StringVar(&configPath, "config", "", "配置文件路径（json/yaml/toml）；缺省读取 ./logsplit.*（若存在）")
	f.StringP("method", "m", "lines", "拆分方法：lines|bytes|date")
	f.StringP("granularity", "g", "hour", "date 方法的桶宽：minute|hour|day|month")
	f.StringP("begin-time", "b", "", "date 方法首桶下界（2006-01-02T15:04:05-07:00）；缺省取首个有效时间戳")
	f.StringP("end-time", "e", "", "date 方法截止时间；不早于该时间的行结束运行")
	f.Uint64P("lower-bound", "l", 1, "lines/bytes：起始单位（1 起始，含）")
	f.Uint64P("upper-bound", "u", math.MaxUint64, "lines/bytes：结束单位（含）")
	f.Uint64P("chunk-size", "c", 10, "lines/bytes：每个分片的单位数")
	f.StringP("file-basename", "f", "part_", "输出文件名前缀（可含目录）")
	f.String("sink", "fs", "输出实现：fs|minio")
	f.String("output-dir", "", "fs 输出根目录；为空时按文件名原样写出")
	f.String("compress", "none", "输出编码：none|gzip|zstd|lz4|xz")
	f.Bool("atomic", true, "fs：先写临时文件再独占发布")
	f.String("timestamp-mode", "prefix", "时间戳提取：prefix（行首 25 字节）|field（首个空白分隔字段）")
	f.String("out-of-order", "discard", "date：早于当前桶的行 discard|keep")
	f.String("log-level", "info", "日志级别：debug|info|warn|error")
	f.Bool("status", true, "终端状态提示（stderr）。TTY 动态刷新；非 TTY 逐行输出")
	f.SortFlags = false

	cmd.AddCommand(newInitConfigCmd())
	return cmd
}

func newInitConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config [dir]",
		Short: "生成默认配置 logsplit.json 与 .env 模板（已存在则跳过，不覆盖）",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
				dir = strings.TrimSpace(args[0])
			}
			written, err := cfgpkg.WriteTemplate(dir)
			if err != nil {
				fprintf(os.Stderr, "生成默认配置失败: %v\n", err)
				return &exitError{code: 3, err: err}
			}
			if len(written) == 0 {
				fprintf(os.Stderr, "模板已存在，跳过: %s\n", dir)
			}
			for _, p := range written {
				fprintf(os.Stderr, "已生成: %s\n", p)
			}
			return nil
		},
	}
}

func runSplit(ctx context.Context, flags *pflag.FlagSet, configPath string, args []string) error {
	start := time.Now()
	corrID := diag.NewCorrID()
	// 在任何 ENV 读取前加载工作目录下的 .env（不覆盖已有 ENV）。
	if err := cfgpkg.LoadDotEnv(".env"); err != nil {
		fprintf(os.Stderr, "提示：.env 加载失败（已跳过）：%v\n", err)
	}

	cfg, err := cfgpkg.Load(configPath, flags)
	if err != nil {
		fprintf(os.Stderr, "配置解析失败: %v\n", err)
		boot := diag.NewLogger(corrID, "info")
		boot.Error("config", string(diag.CodeConfig), err.Error(), &start)
		_ = boot.Close()
		return &exitError{code: 3, err: err}
	}
	if len(args) == 1 {
		cfg.InputFile = strings.TrimSpace(args[0])
	}

	logger := diag.NewLoggerWith(corrID, diag.LogOptions{
		Dir:        cfg.Logging.Dir,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		Level:      cfg.Logging.Level,
	})
	defer logger.Close()

	if err := cfgpkg.Validate(cfg); err != nil {
		fprintf(os.Stderr, "配置校验失败: %v\n", err)
		_ = dumpConfig(os.Stderr, cfg)
		logger.Error("config", string(diag.CodeConfig), err.Error(), &start)
		return &exitError{code: 3, err: err}
	}

	// 预检：文件系统输出时检查输出目录的可写性
	if err := preflightCheckOutputDir(cfg); err != nil {
		fprintf(os.Stderr, "输出目录不可写或无法创建: %v\n", err)
		logger.Error("config", string(diag.Classify(err)), err.Error(), &start)
		return &exitError{code: 3, err: err}
	}

	comp, set, err := cfgpkg.Assemble(cfg)
	if err != nil {
		fprintf(os.Stderr, "装配失败: %v\n", err)
		logger.Error("config", string(diag.CodeConfig), err.Error(), &start)
		return &exitError{code: 3, err: err}
	}

	logger.DebugStart("config", "effective", cfg.InputFile, effectiveKV(cfg))

	// 终端信息提示（非日志）
	term := diag.NewTerminal(os.Stderr, cfg.Status)
	diag.SetTerminal(term)
	defer diag.SetTerminal(nil)
	term.RunStart(cfg.Method, cfg.InputFile)

	stats, err := pipelineRun(ctx, comp, set, logger)
	if err != nil {
		code := diag.Classify(err)
		logger.Error("pipeline", string(code), "first error", &start)
		if !errors.Is(err, context.Canceled) {
			fprintf(os.Stderr, "运行失败: %v\n", err)
		}
		term.RunFinish(false, stats.Files, stats.Bytes, time.Since(start))
		return &exitError{code: 1, err: err}
	}
	term.RunFinish(true, stats.Files, stats.Bytes, time.Since(start))
	return nil
}

// effectiveKV: 运行时配置摘要（不含密钥）。
func effectiveKV(cfg cfgpkg.Config) map[string]string {
	kv := map[string]string{
		"method":         cfg.Method,
		"file_basename":  cfg.FileBaseName,
		"sink":           cfg.Output.Sink,
		"compress":       cfg.Output.Compress,
		"output_dir":     cfg.Output.Dir,
		"lower_bound":    strconv.FormatUint(cfg.LowerBound, 10),
		"upper_bound":    strconv.FormatUint(cfg.UpperBound, 10),
		"chunk_size":     strconv.FormatUint(cfg.ChunkSize, 10),
		"granularity":    cfg.Granularity,
		"begin_time":     cfg.BeginTime,
		"end_time":       cfg.EndTime,
		"timestamp_mode": cfg.TimestampMode,
		"out_of_order":   cfg.OutOfOrder,
	}
	if cfg.Output.Sink == "minio" {
		kv["minio_endpoint"] = cfg.Output.Minio.Endpoint
		kv["minio_bucket"] = cfg.Output.Minio.Bucket
	}
	if r := cfg.Output.Rate; r.FilesPerMin > 0 || r.BytesPerMin > 0 {
		kv["rate_files_per_min"] = strconv.Itoa(r.FilesPerMin)
		kv["rate_bytes_per_min"] = strconv.Itoa(r.BytesPerMin)
	}
	return kv
}

func fprintf(w io.Writer, format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }

// dumpConfig 打印有效配置，密钥脱敏。
func dumpConfig(w io.Writer, c cfgpkg.Config) error {
	if c.Output.Minio.SecretKey != "" {
		c.Output.Minio.SecretKey = "***"
	}
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "有效配置:\n%s\n", b)
	return err
}

// preflightCheckOutputDir: 使用文件系统输出且配置了 output.dir 时，启动前检查可写性。
// - 目录已存在：尝试创建并删除临时文件；
// - 目录不存在：检查父目录是否可写（尝试创建并删除临时目录）。
func preflightCheckOutputDir(cfg cfgpkg.Config) error {
	if cfg.Output.Sink != "fs" {
		return nil
	}
	dir := strings.TrimSpace(cfg.Output.Dir)
	if dir == "" {
		return nil
	}
	st, err := os.Stat(dir)
	switch {
	case err == nil && st.IsDir():
		f, err := os.CreateTemp(dir, ".wcheck-*")
		if err != nil {
			return err
		}
		name := f.Name()
		_ = f.Close()
		_ = os.Remove(name)
		return nil
	case err == nil:
		return fmt.Errorf("路径存在但不是目录: %s", dir)
	case !os.IsNotExist(err):
		return err
	}
	parent := filepath.Dir(filepath.Clean(dir))
	for {
		pst, err := os.Stat(parent)
		if err == nil {
			if !pst.IsDir() {
				return fmt.Errorf("父路径不是目录: %s", parent)
			}
			break
		}
		if !os.IsNotExist(err) {
			return err
		}
		next := filepath.Dir(parent)
		if next == parent {
			return fmt.Errorf("无法确定父目录: %s", dir)
		}
		parent = next
	}
	tmpd, err := os.MkdirTemp(parent, ".wcheck-*")
	if err != nil {
		return err
	}
	_ = os.RemoveAll(tmpd)
	return nil
}
