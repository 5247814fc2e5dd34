package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// TemplateConfigName / TemplateEnvName: init-config 生成的文件名。
const (
	TemplateConfigName = DefaultConfigName + ".json"
	TemplateEnvName    = ".env"
)

// DefaultTemplateConfig 返回一个可运行的默认配置模板：
// 输入为 STDIN（"-"），分片写入 ./out；upper_bound 省略即无上界。
func DefaultTemplateConfig() Config {
	cfg := Defaults()
	cfg.InputFile = "-"
	cfg.UpperBound = 0
	cfg.Output.Dir = "out"
	return cfg
}

// templateEnv: .env 模板只承载凭据与日志类键，避免覆盖配置文件中的拆分参数。
func templateEnv() map[string]string {
	return map[string]string{
		EnvPrefix + "_LOGGING_LEVEL":           "info",
		EnvPrefix + "_OUTPUT_MINIO_ENDPOINT":   "",
		EnvPrefix + "_OUTPUT_MINIO_ACCESS_KEY": "",
		EnvPrefix + "_OUTPUT_MINIO_SECRET_KEY": "",
		EnvPrefix + "_OUTPUT_MINIO_BUCKET":     "",
	}
}

// WriteTemplate 在 dir 下生成 logsplit.json 与 .env 模板。
// 已存在的文件跳过，不覆盖；返回实际写出的路径。
func WriteTemplate(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("config: mkdir %s: %w", dir, err)
	}
	var written []string

	b, err := json.MarshalIndent(DefaultTemplateConfig(), "", "  ")
	if err != nil {
		return nil, err
	}
	cfgPath := filepath.Join(dir, TemplateConfigName)
	ok, err := createExclusive(cfgPath, append(b, '\n'))
	if err != nil {
		return written, err
	}
	if ok {
		written = append(written, cfgPath)
	}

	env, err := godotenv.Marshal(templateEnv())
	if err != nil {
		return written, err
	}
	envPath := filepath.Join(dir, TemplateEnvName)
	ok, err = createExclusive(envPath, []byte("# logsplit .env 模板（由 init-config 生成）\n"+env+"\n"))
	if err != nil {
		return written, err
	}
	if ok {
		written = append(written, envPath)
	}
	return written, nil
}

// createExclusive 以 O_EXCL 创建文件；已存在返回 (false, nil)。
func createExclusive(path string, data []byte) (bool, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("config: create %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return false, fmt.Errorf("config: write %s: %w", path, err)
	}
	return true, f.Close()
}
