package stress

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	cfgpkg "logsplit/internal/config"
	"logsplit/internal/pipeline"
)

// baseConfig 构造可运行的最小配置。
func baseConfig(input, outDir string) cfgpkg.Config {
	cfg := cfgpkg.Defaults()
	cfg.InputFile = input
	cfg.Output.Dir = outDir
	cfg.Output.Atomic = false
	cfg.Logging.Level = "error"
	cfg.Status = false
	return cfg
}

// runPipeline 执行完整流水线。
func runPipeline(cfg cfgpkg.Config) error {
	comp, set, err := cfgpkg.Assemble(cfg)
	if err != nil {
		return err
	}
	_, err = pipeline.Run(context.Background(), comp, set, nil)
	return err
}

// genLog 生成 n 行按秒递增的日志，每 50 行插入一段两行堆栈。
func genLog(n int) []byte {
	var b bytes.Buffer
	t0 := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		ts := t0.Add(time.Duration(i) * 7 * time.Second)
		fmt.Fprintf(&b, "%s INFO req=%06d path=/api/v1/items status=200\n", ts.Format("2006-01-02T15:04:05-07:00"), i)
		if i%50 == 49 {
			b.WriteString("\tat svc.handle (svc.go:88)\n\tat svc.serve (svc.go:21)\n")
		}
	}
	return b.Bytes()
}

// readJoined 按文件名排序拼接输出目录内容。
func readJoined(dir string) ([]byte, int, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, 0, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		names = append(names, e.Name())
	}
	// lines/bytes 序号无补零，按长度再按字典序
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) < len(names[j])
		}
		return names[i] < names[j]
	})
	var out bytes.Buffer
	for _, n := range names {
		b, err := os.ReadFile(filepath.Join(dir, n))
		if err != nil {
			return nil, 0, err
		}
		out.Write(b)
	}
	return out.Bytes(), len(names), nil
}

type scenario struct {
	name   string
	mutate func(*cfgpkg.Config)
}

// TestStress 在不同方法与粒度下运行流水线，记录延迟统计并校验输出拼接等于输入。
func TestStress(t *testing.T) {
	if testing.Short() {
		t.Skip("short 模式跳过压力测试")
	}
	input := genLog(200_000)
	in := filepath.Join(t.TempDir(), "big.log")
	require.NoError(t, os.WriteFile(in, input, 0o644))

	scenarios := []scenario{
		{"lines_1000", func(c *cfgpkg.Config) { c.Method = "lines"; c.ChunkSize = 1000 }},
		{"lines_50000", func(c *cfgpkg.Config) { c.Method = "lines"; c.ChunkSize = 50000 }},
		{"bytes_64KiB", func(c *cfgpkg.Config) { c.Method = "bytes"; c.ChunkSize = 64 << 10 }},
		{"bytes_4MiB", func(c *cfgpkg.Config) { c.Method = "bytes"; c.ChunkSize = 4 << 20 }},
		{"date_minute", func(c *cfgpkg.Config) { c.Method = "date"; c.Granularity = "minute" }},
		{"date_hour", func(c *cfgpkg.Config) { c.Method = "date"; c.Granularity = "hour" }},
		{"date_day", func(c *cfgpkg.Config) { c.Method = "date"; c.Granularity = "day" }},
	}
	for _, sc := range scenarios {
		t.Run(sc.name, func(t *testing.T) {
			const runs = 3
			successes := 0
			latencies := make([]time.Duration, 0, runs)
			var first []byte
			var files int
			for i := 0; i < runs; i++ {
				outDir := t.TempDir()
				cfg := baseConfig(in, outDir)
				sc.mutate(&cfg)
				start := time.Now()
				err := runPipeline(cfg)
				dur := time.Since(start)
				if err != nil {
					t.Errorf("run %d: %v", i, err)
					continue
				}
				got, n, err := readJoined(outDir)
				require.NoError(t, err)
				if !bytes.Equal(got, input) {
					t.Errorf("run %d: 输出拼接与输入不一致（%d vs %d 字节）", i, len(got), len(input))
				}
				if first == nil {
					first, files = got, n
				} else if !bytes.Equal(first, got) || files != n {
					t.Errorf("run %d: 多次运行结果不一致", i)
				}
				successes++
				latencies = append(latencies, dur)
			}
			if successes == 0 {
				t.Fatalf("全部运行失败")
			}
			sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
			var total time.Duration
			for _, d := range latencies {
				total += d
			}
			avg := total / time.Duration(len(latencies))
			idx := int(math.Ceil(float64(len(latencies))*0.95)) - 1
			if idx < 0 {
				idx = 0
			}
			p95 := latencies[idx]
			t.Logf("%s 文件%d 成功率%.2f 平均%v 95%%延迟%v", sc.name, files, float64(successes)/float64(runs), avg, p95)
		})
	}
}

// TestStressLongLines 超长单行不被截断。
func TestStressLongLines(t *testing.T) {
	line := "2023-01-01T00:00:00+00:00 " + strings.Repeat("z", 3<<20) + "\n"
	input := []byte(line + line)
	in := filepath.Join(t.TempDir(), "long.log")
	require.NoError(t, os.WriteFile(in, input, 0o644))
	for _, m := range []string{"lines", "bytes", "date"} {
		outDir := t.TempDir()
		cfg := baseConfig(in, outDir)
		cfg.Method = m
		cfg.ChunkSize = 1
		require.NoError(t, runPipeline(cfg), m)
		got, _, err := readJoined(outDir)
		require.NoError(t, err)
		require.True(t, bytes.Equal(input, got), m)
	}
}
