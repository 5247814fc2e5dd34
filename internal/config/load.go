package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix: 环境变量前缀，键中的 "." 映射为 "_"（LOGSPLIT_OUTPUT_DIR）。
const EnvPrefix = "LOGSPLIT"

// DefaultConfigName: 未指定 --config 时在工作目录查找 logsplit.{json,yaml,toml}。
const DefaultConfigName = "logsplit"

// Defaults 返回带有默认值的 Config。
func Defaults() Config {
	return Config{
		Method:        "lines",
		FileBaseName:  "part_",
		LowerBound:    1,
		UpperBound:    math.MaxUint64,
		ChunkSize:     10,
		Granularity:   "hour",
		TimestampMode: "prefix",
		OutOfOrder:    "discard",
		Status:        true,
		Logging:       Logging{Level: "info", Dir: "logs", MaxSizeMB: 10, MaxBackups: 5},
		Input:         Input{BufSize: 64 * 1024},
		Output: Output{
			Sink:     "fs",
			Compress: "none",
			Atomic:   true,
			BufSize:  64 * 1024,
		},
	}
}

// setDefaults 将 Defaults 逐键写入 viper，使每个键都可被 ENV 覆盖。
func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("input_file", d.InputFile)
	v.SetDefault("method", d.Method)
	v.SetDefault("file_basename", d.FileBaseName)
	v.SetDefault("lower_bound", d.LowerBound)
	v.SetDefault("upper_bound", d.UpperBound)
	v.SetDefault("chunk_size", d.ChunkSize)
	v.SetDefault("granularity", d.Granularity)
	v.SetDefault("begin_time", d.BeginTime)
	v.SetDefault("end_time", d.EndTime)
	v.SetDefault("timestamp_mode", d.TimestampMode)
	v.SetDefault("out_of_order", d.OutOfOrder)
	v.SetDefault("status", d.Status)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.dir", d.Logging.Dir)
	v.SetDefault("logging.max_size_mb", d.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", d.Logging.MaxBackups)

	v.SetDefault("input.buf_size", d.Input.BufSize)
	v.SetDefault("input.max_bytes", d.Input.MaxBytes)

	v.SetDefault("output.sink", d.Output.Sink)
	v.SetDefault("output.dir", d.Output.Dir)
	v.SetDefault("output.compress", d.Output.Compress)
	v.SetDefault("output.atomic", d.Output.Atomic)
	v.SetDefault("output.flat", d.Output.Flat)
	v.SetDefault("output.perm_file", d.Output.PermFile)
	v.SetDefault("output.perm_dir", d.Output.PermDir)
	v.SetDefault("output.buf_size", d.Output.BufSize)

	v.SetDefault("output.minio.endpoint", "")
	v.SetDefault("output.minio.access_key", "")
	v.SetDefault("output.minio.secret_key", "")
	v.SetDefault("output.minio.bucket", "")
	v.SetDefault("output.minio.prefix", "")
	v.SetDefault("output.minio.use_ssl", false)
	v.SetDefault("output.minio.compress", "")

	v.SetDefault("output.rate.files_per_min", d.Output.Rate.FilesPerMin)
	v.SetDefault("output.rate.bytes_per_min", d.Output.Rate.BytesPerMin)
}

// FlagKeys: CLI 开关名到配置键的映射。
var FlagKeys = map[string]string{
	"method":         "method",
	"granularity":    "granularity",
	"begin-time":     "begin_time",
	"end-time":       "end_time",
	"lower-bound":    "lower_bound",
	"upper-bound":    "upper_bound",
	"chunk-size":     "chunk_size",
	"file-basename":  "file_basename",
	"sink":           "output.sink",
	"output-dir":     "output.dir",
	"compress":       "output.compress",
	"atomic":         "output.atomic",
	"timestamp-mode": "timestamp_mode",
	"out-of-order":   "out_of_order",
	"log-level":      "logging.level",
	"status":         "status",
}

// Load 按优先级合并配置：CLI > ENV > 配置文件 > 默认值。
// path 为空时在工作目录查找 logsplit.{json,yaml,toml}，不存在则跳过。
// flags 可为 nil；仅显式设置过的开关参与覆盖。
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else {
		v.SetConfigName(DefaultConfigName)
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var nf viper.ConfigFileNotFoundError
			if !errors.As(err, &nf) {
				return Config{}, fmt.Errorf("config: read: %w", err)
			}
		}
	}

	if flags != nil {
		for name, key := range FlagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return Config{}, fmt.Errorf("config: bind --%s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.UnmarshalExact(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	normalize(&cfg)
	return cfg, nil
}

func normalize(cfg *Config) {
	cfg.InputFile = strings.TrimSpace(cfg.InputFile)
	cfg.Method = strings.ToLower(strings.TrimSpace(cfg.Method))
	cfg.Granularity = strings.ToLower(strings.TrimSpace(cfg.Granularity))
	cfg.BeginTime = strings.TrimSpace(cfg.BeginTime)
	cfg.EndTime = strings.TrimSpace(cfg.EndTime)
	cfg.TimestampMode = strings.ToLower(strings.TrimSpace(cfg.TimestampMode))
	cfg.OutOfOrder = strings.ToLower(strings.TrimSpace(cfg.OutOfOrder))
	cfg.Output.Sink = strings.ToLower(strings.TrimSpace(cfg.Output.Sink))
	cfg.Output.Compress = strings.ToLower(strings.TrimSpace(cfg.Output.Compress))
	cfg.Logging.Level = strings.TrimSpace(cfg.Logging.Level)
}

// LoadDotEnv 加载 .env 到进程环境（不覆盖已有 ENV）；文件不存在时忽略。
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}
