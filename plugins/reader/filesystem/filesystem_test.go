package filesystem

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logsplit/pkg/contract"
)

// TestReadAllFile 读取单文件
func TestReadAllFile(t *testing.T) {
	fp := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, os.WriteFile(fp, []byte("l1\nl2\n"), 0o644))
	b, err := New(nil).ReadAll(context.Background(), fp)
	require.NoError(t, err)
	assert.Equal(t, "l1\nl2\n", string(b))
}

// TestReadAllStdin "-" 读取 STDIN
func TestReadAllStdin(t *testing.T) {
	r := New(&Options{BufSize: 16})
	r.stdin = strings.NewReader("from pipe\n")
	b, err := r.ReadAll(context.Background(), "-")
	require.NoError(t, err)
	assert.Equal(t, "from pipe\n", string(b))
}

// TestReadAllErrors 缺失文件、目录、空路径均为 ErrInputRead。
func TestReadAllErrors(t *testing.T) {
	dir := t.TempDir()
	r := New(nil)
	for _, p := range []string{filepath.Join(dir, "missing.log"), dir, "  "} {
		_, err := r.ReadAll(context.Background(), p)
		require.Error(t, err, p)
		assert.True(t, errors.Is(err, contract.ErrInputRead), "%s: %v", p, err)
	}
	_, err := r.ReadAll(context.Background(), filepath.Join(dir, "missing.log"))
	assert.True(t, errors.Is(err, os.ErrNotExist), "保留底层原因")
}

// TestReadAllMaxBytes 超过上限视为读取失败。
func TestReadAllMaxBytes(t *testing.T) {
	fp := filepath.Join(t.TempDir(), "big.log")
	require.NoError(t, os.WriteFile(fp, []byte("0123456789"), 0o644))

	_, err := New(&Options{MaxBytes: 4}).ReadAll(context.Background(), fp)
	assert.ErrorIs(t, err, contract.ErrInputRead)

	b, err := New(&Options{MaxBytes: 10}).ReadAll(context.Background(), fp)
	require.NoError(t, err)
	assert.Len(t, b, 10)

	r := New(&Options{MaxBytes: 3})
	r.stdin = strings.NewReader("abcd")
	_, err = r.ReadAll(context.Background(), "-")
	assert.ErrorIs(t, err, contract.ErrInputRead)
}

type failing struct{}

func (failing) Read([]byte) (int, error) { return 0, errors.New("broken pipe") }

// TestReadAllStdinError 读取中途失败。
func TestReadAllStdinError(t *testing.T) {
	r := New(nil)
	r.stdin = failing{}
	_, err := r.ReadAll(context.Background(), "-")
	assert.ErrorIs(t, err, contract.ErrInputRead)
}

// TestReadAllCanceled 取消的上下文不读取。
func TestReadAllCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(nil).ReadAll(ctx, "-")
	assert.ErrorIs(t, err, context.Canceled)
}
