package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfgpkg "logsplit/internal/config"
	"logsplit/internal/diag"
	"logsplit/internal/pipeline"
	"logsplit/pkg/contract"
)

// inTempDir 切换到临时工作目录（日志与默认配置查找均相对于此）。
func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(cwd) })
	return dir
}

func write(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func read(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestRunLines(t *testing.T) {
	dir := inTempDir(t)
	write(t, "in.log", "1\n2\n3\n4\n5\n")
	code := run([]string{"-m", "lines", "-c", "2", "-l", "2", "--output-dir", "out", "--status=false", "in.log"})
	require.Equal(t, 0, code)
	assert.Equal(t, "2\n3\n", read(t, filepath.Join(dir, "out", "part_0.out")))
	assert.Equal(t, "4\n5\n", read(t, filepath.Join(dir, "out", "part_1.out")))
	_, err := os.Stat(filepath.Join(dir, "logs", diag.LogFileName))
	assert.NoError(t, err, "运行日志应落盘")
}

func TestRunBytesWithBasenameDir(t *testing.T) {
	dir := inTempDir(t)
	write(t, "in.log", "aaaa\nbb\ncccccc\n")
	code := run([]string{"--method=bytes", "--chunk-size=3", "-f", "chunks/b_", "--status=false", "in.log"})
	require.Equal(t, 0, code)
	assert.Equal(t, "aaaa\n", read(t, filepath.Join(dir, "chunks", "b_0.out")))
}

func TestRunDate(t *testing.T) {
	dir := inTempDir(t)
	write(t, "in.log", "2023-01-01T00:00:00+00:00 a\n2023-01-01T01:00:00+00:00 b\n")
	code := run([]string{"-m", "date", "-g", "hour", "-f", "h_", "--output-dir", "out", "--status=false", "in.log"})
	require.Equal(t, 0, code)
	assert.Equal(t, "2023-01-01T00:00:00+00:00 a\n", read(t, filepath.Join(dir, "out", "h_20230101010000.out")))
	assert.Equal(t, "2023-01-01T01:00:00+00:00 b\n", read(t, filepath.Join(dir, "out", "h_20230101020000.out")))
}

// 已存在的输出不覆盖：第二次运行为运行期失败
func TestRunRefusesExistingOutput(t *testing.T) {
	dir := inTempDir(t)
	write(t, "in.log", "x\n")
	args := []string{"--output-dir", "out", "--status=false", "in.log"}
	require.Equal(t, 0, run(args))
	write(t, filepath.Join(dir, "out", "part_0.out"), "keep")
	assert.Equal(t, 1, run(args))
	assert.Equal(t, "keep", read(t, filepath.Join(dir, "out", "part_0.out")))
}

// 未知方法：仅诊断，不产生输出
func TestRunInvalidMethod(t *testing.T) {
	dir := inTempDir(t)
	write(t, "in.log", "x\n")
	assert.Equal(t, 3, run([]string{"-m", "words", "--output-dir", "out", "in.log"}))
	_, err := os.Stat(filepath.Join(dir, "out"))
	assert.True(t, os.IsNotExist(err))
}

func TestRunConfigErrors(t *testing.T) {
	inTempDir(t)
	assert.Equal(t, 3, run([]string{}), "缺少输入")
	assert.Equal(t, 3, run([]string{"--no-such-flag", "in.log"}))
	assert.Equal(t, 3, run([]string{"a.log", "b.log"}), "至多一个位置参数")
	assert.Equal(t, 3, run([]string{"--config", "missing.json", "in.log"}))
	assert.Equal(t, 3, run([]string{"-c", "0", "in.log"}))
	assert.Equal(t, 3, run([]string{"--compress", "rar", "in.log"}))
}

func TestRunMissingInputFile(t *testing.T) {
	inTempDir(t)
	assert.Equal(t, 1, run([]string{"--status=false", "nope.log"}))
}

// 配置文件与 ENV 覆盖，CLI 优先
func TestRunConfigFileAndEnv(t *testing.T) {
	dir := inTempDir(t)
	write(t, "in.log", "1\n2\n3\n4\n")
	write(t, "c.yaml", "method: lines\nchunk_size: 3\nfile_basename: cfg_\noutput:\n  dir: out\n")
	t.Setenv("LOGSPLIT_FILE_BASENAME", "env_")

	require.Equal(t, 0, run([]string{"--config", "c.yaml", "--status=false", "in.log"}))
	assert.Equal(t, "1\n2\n3\n", read(t, filepath.Join(dir, "out", "env_0.out")))

	require.Equal(t, 0, run([]string{"--config", "c.yaml", "-f", "cli_", "-c", "4", "--status=false", "in.log"}))
	assert.Equal(t, "1\n2\n3\n4\n", read(t, filepath.Join(dir, "out", "cli_0.out")))
}

// 输入文件可由配置提供；.env 中的键不覆盖已有 ENV
func TestRunInputFromDotEnv(t *testing.T) {
	dir := inTempDir(t)
	write(t, "in.log", "q\n")
	write(t, ".env", "LOGSPLIT_INPUT_FILE=in.log\nLOGSPLIT_OUTPUT_DIR=dotenv-out\nLOGSPLIT_STATUS=false\n")
	t.Setenv("LOGSPLIT_OUTPUT_DIR", "env-out")
	t.Setenv("LOGSPLIT_INPUT_FILE", "")
	require.NoError(t, os.Unsetenv("LOGSPLIT_INPUT_FILE"))
	t.Setenv("LOGSPLIT_STATUS", "")
	require.NoError(t, os.Unsetenv("LOGSPLIT_STATUS"))

	require.Equal(t, 0, run(nil))
	assert.Equal(t, "q\n", read(t, filepath.Join(dir, "env-out", "part_0.out")))
}

func TestRunPipelineError(t *testing.T) {
	inTempDir(t)
	write(t, "in.log", "x\n")
	orig := pipelineRun
	defer func() { pipelineRun = orig }()

	var got pipeline.Settings
	pipelineRun = func(ctx context.Context, comp pipeline.Components, set pipeline.Settings, logger *diag.Logger) (contract.Stats, error) {
		got = set
		return contract.Stats{Files: 1}, fmt.Errorf("%w: disk full", contract.ErrIO)
	}
	assert.Equal(t, 1, run([]string{"-m", "date", "--status=false", "in.log"}))
	assert.Equal(t, "in.log", got.Input)
	assert.Equal(t, contract.MethodDate, got.Method)
	assert.Equal(t, "fs", got.Sink)

	pipelineRun = func(ctx context.Context, comp pipeline.Components, set pipeline.Settings, logger *diag.Logger) (contract.Stats, error) {
		return contract.Stats{}, context.Canceled
	}
	assert.Equal(t, 1, run([]string{"--status=false", "in.log"}))
}

func TestRunInitConfig(t *testing.T) {
	dir := inTempDir(t)
	require.Equal(t, 0, run([]string{"init-config", "conf"}))
	cfgPath := filepath.Join(dir, "conf", cfgpkg.TemplateConfigName)
	assert.FileExists(t, cfgPath)
	assert.FileExists(t, filepath.Join(dir, "conf", cfgpkg.TemplateEnvName))

	write(t, cfgPath, "{}")
	require.Equal(t, 0, run([]string{"init-config", "conf"}), "已存在时跳过")
	assert.Equal(t, "{}", read(t, cfgPath))

	require.Equal(t, 0, run([]string{"init-config"}))
	assert.FileExists(t, filepath.Join(dir, cfgpkg.TemplateConfigName))

	write(t, "blocker", "")
	assert.Equal(t, 3, run([]string{"init-config", "blocker"}))
}

func TestRunVersion(t *testing.T) {
	inTempDir(t)
	assert.Equal(t, 0, run([]string{"--version"}))
}

func TestPreflightCheckOutputDir(t *testing.T) {
	dir := t.TempDir()
	cfg := cfgpkg.Defaults()

	assert.NoError(t, preflightCheckOutputDir(cfg), "未设置目录时跳过")
	cfg.Output.Dir = dir
	assert.NoError(t, preflightCheckOutputDir(cfg))
	cfg.Output.Dir = filepath.Join(dir, "a", "b", "c")
	assert.NoError(t, preflightCheckOutputDir(cfg), "不存在的多级目录检查最近的祖先")

	file := filepath.Join(dir, "file")
	write(t, file, "")
	cfg.Output.Dir = file
	assert.Error(t, preflightCheckOutputDir(cfg))
	cfg.Output.Dir = filepath.Join(file, "sub")
	assert.Error(t, preflightCheckOutputDir(cfg))

	cfg.Output.Sink = "minio"
	assert.NoError(t, preflightCheckOutputDir(cfg), "非 fs 输出跳过")
}

func TestDumpConfigRedacts(t *testing.T) {
	cfg := cfgpkg.Defaults()
	cfg.Output.Minio.SecretKey = "s3cr3t"
	var buf bytes.Buffer
	require.NoError(t, dumpConfig(&buf, cfg))
	assert.NotContains(t, buf.String(), "s3cr3t")
	assert.True(t, strings.HasPrefix(buf.String(), "有效配置:"))
}

func TestExitError(t *testing.T) {
	base := errors.New("x")
	err := error(&exitError{code: 3, err: base})
	assert.True(t, errors.Is(err, base))
	assert.Equal(t, "x", err.Error())
}
