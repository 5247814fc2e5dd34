package contract

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNormalizeFileID 验证路径规范化逻辑。
func TestNormalizeFileID(t *testing.T) {
	assert.Equal(t, FileID("a/b/c"), NormalizeFileID(filepath.Join("a", "b", "c")))

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Windows路径", "C:\\Users\\test\\file.txt", "C:/Users/test/file.txt"},
		{"清理多余斜杠", "path//to///file.txt", "path/to/file.txt"},
		{"处理父目录", "path/to/../from/file.txt", "path/from/file.txt"},
		{"空串", "", "."},
		{"Windows根", "C:\\", "C:"},
		{"混合分隔符", "logs\\2023/./part_\\\\0.out", "logs/2023/part_/0.out"},
		{"复杂父目录", "a\\b\\c\\..\\..\\..\\..\\d", "../d"},
		{"Unix绝对路径", "/var/log/../tmp/part_0.out", "/var/tmp/part_0.out"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(NormalizeFileID(tt.input)))
		})
	}
}

// TestGranularityMinutes 桶宽换算：month 取 30 天。
func TestGranularityMinutes(t *testing.T) {
	assert.Equal(t, int64(1), Minute.Minutes())
	assert.Equal(t, int64(60), Hour.Minutes())
	assert.Equal(t, int64(1440), Day.Minutes())
	assert.Equal(t, int64(43200), Month.Minutes())
	assert.Equal(t, int64(60), Granularity("HOUR").Minutes())
	assert.Equal(t, int64(0), Granularity("week").Minutes())
	assert.Equal(t, 30*24*time.Hour, Month.Duration())
}

// TestOutputNames 输出命名：顺序号与桶上界。
func TestOutputNames(t *testing.T) {
	assert.Equal(t, ArtifactID("part_0.out"), SequentialName("part_", 0))
	assert.Equal(t, ArtifactID("out/x_12.out"), SequentialName("out/x_", 12))

	upper := time.Date(2023, 1, 1, 1, 0, 0, 0, time.FixedZone("", 2*3600))
	// 命名总是使用 UTC
	assert.Equal(t, ArtifactID("part_20221231230000.out"), BucketName("part_", upper))
}

type plainWriter struct{}

func (plainWriter) Write(context.Context, ArtifactID, io.Reader) error { return nil }

type noisyWriter struct {
	plainWriter
	msgs []string
}

func (n *noisyWriter) Warn(msg string) { n.msgs = append(n.msgs, msg) }

// TestWarnOptional 仅在 Writer 实现 Notifier 时转发提示。
func TestWarnOptional(t *testing.T) {
	Warn(plainWriter{}, "ignored")

	n := &noisyWriter{}
	Warn(n, "begin_time unparsable")
	require.Len(t, n.msgs, 1)
	assert.Equal(t, "begin_time unparsable", n.msgs[0])
	require.NoError(t, n.Write(context.Background(), "x", bytes.NewReader(nil)))
}

// BenchmarkNormalizeFileID 性能基准测试
func BenchmarkNormalizeFileID(b *testing.B) {
	testPaths := []string{
		"C:\\Users\\test\\Documents\\file.txt",
		"src/main/java/../../../test/data/file.txt",
		"path//to///many////slashes/file.txt",
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, p := range testPaths {
			NormalizeFileID(p)
		}
	}
}
