package config

import (
	wminio "logsplit/plugins/writer/minio"
)

// Config: 运行期只读配置（一次解析，运行期不变）。
// 键使用 snake_case；配置文件中的未知键在解析期失败。
type Config struct {
	// InputFile: 输入文件路径；"-" 表示 STDIN。
	InputFile string `json:"input_file" mapstructure:"input_file"`

	Method       string `json:"method" mapstructure:"method"`
	FileBaseName string `json:"file_basename" mapstructure:"file_basename"`

	// lines/bytes
	LowerBound uint64 `json:"lower_bound" mapstructure:"lower_bound"`
	// UpperBound: 省略时为 uint64 最大值（无上界）。
	UpperBound uint64 `json:"upper_bound,omitempty" mapstructure:"upper_bound"`
	ChunkSize  uint64 `json:"chunk_size" mapstructure:"chunk_size"`

	// date；时间为空表示未设置。
	Granularity   string `json:"granularity" mapstructure:"granularity"`
	BeginTime     string `json:"begin_time" mapstructure:"begin_time"`
	EndTime       string `json:"end_time" mapstructure:"end_time"`
	TimestampMode string `json:"timestamp_mode" mapstructure:"timestamp_mode"`
	OutOfOrder    string `json:"out_of_order" mapstructure:"out_of_order"`

	// Status: 终端状态提示（stderr）。
	Status bool `json:"status" mapstructure:"status"`

	Logging Logging `json:"logging" mapstructure:"logging"`
	Input   Input   `json:"input" mapstructure:"input"`
	Output  Output  `json:"output" mapstructure:"output"`
}

// Logging: 日志等级与落盘策略。
type Logging struct {
	Level      string `json:"level" mapstructure:"level"`
	Dir        string `json:"dir" mapstructure:"dir"`
	MaxSizeMB  int    `json:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `json:"max_backups" mapstructure:"max_backups"`
}

// Input: 输入读取选项。
type Input struct {
	BufSize  int   `json:"buf_size" mapstructure:"buf_size"`
	MaxBytes int64 `json:"max_bytes" mapstructure:"max_bytes"`
}

// Output: 分片输出选项。Sink 选择实现（fs|minio）。
type Output struct {
	Sink     string `json:"sink" mapstructure:"sink"`
	Dir      string `json:"dir" mapstructure:"dir"`
	Compress string `json:"compress" mapstructure:"compress"`
	Atomic   bool   `json:"atomic" mapstructure:"atomic"`
	Flat     bool   `json:"flat" mapstructure:"flat"`
	PermFile uint32 `json:"perm_file" mapstructure:"perm_file"`
	PermDir  uint32 `json:"perm_dir" mapstructure:"perm_dir"`
	BufSize  int    `json:"buf_size" mapstructure:"buf_size"`

	Minio wminio.Options `json:"minio" mapstructure:"minio"`
	// Rate: 可选写出限速；0 表示不限。
	Rate Rate `json:"rate" mapstructure:"rate"`
}

// Rate: 按 sink 分组的每分钟写出额度。
type Rate struct {
	FilesPerMin int `json:"files_per_min" mapstructure:"files_per_min"`
	BytesPerMin int `json:"bytes_per_min" mapstructure:"bytes_per_min"`
}
