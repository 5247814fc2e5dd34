package filesystem

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"logsplit/pkg/contract"
)

// Options 为 FileSystem Reader 的可选配置（最小必要）。
type Options struct {
	// BufSize 为读缓冲区大小（字节）。默认 64KiB。
	BufSize int `json:"buf_size" mapstructure:"buf_size"`
	// MaxBytes 为输入上限；<=0 表示不限。超限视为读取失败。
	MaxBytes int64 `json:"max_bytes" mapstructure:"max_bytes"`
}

// FileSystem 实现基于文件系统与 STDIN 的一次性读入。
type FileSystem struct {
	bufSize  int
	maxBytes int64
	stdin    io.Reader
}

// New 创建 FileSystem Reader。
func New(opts *Options) *FileSystem {
	const defaultBuf = 64 * 1024
	r := &FileSystem{bufSize: defaultBuf, stdin: os.Stdin}
	if opts != nil {
		if opts.BufSize > 0 {
			r.bufSize = opts.BufSize
		}
		r.maxBytes = opts.MaxBytes
	}
	return r
}

var _ contract.Reader = (*FileSystem)(nil)

// ReadAll 读入 path 的全部字节；"-" 表示 STDIN。
// 仅接受常规文件（允许指向常规文件的符号链接）；所有失败包装 ErrInputRead。
func (r *FileSystem) ReadAll(ctx context.Context, path string) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", contract.ErrInputRead)
	}
	if path == "-" {
		return r.drain("stdin", r.stdin)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", contract.ErrInputRead, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", contract.ErrInputRead, path)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s is not a regular file", contract.ErrInputRead, path)
	}
	if r.maxBytes > 0 && info.Size() > r.maxBytes {
		return nil, fmt.Errorf("%w: %s exceeds max_bytes (%d > %d)", contract.ErrInputRead, path, info.Size(), r.maxBytes)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", contract.ErrInputRead, err)
	}
	defer f.Close()
	return r.drain(path, f)
}

func (r *FileSystem) drain(name string, src io.Reader) ([]byte, error) {
	br := bufio.NewReaderSize(src, r.bufSize)
	var lr io.Reader = br
	if r.maxBytes > 0 {
		lr = io.LimitReader(br, r.maxBytes+1)
	}
	b, err := io.ReadAll(lr)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", contract.ErrInputRead, name, err)
	}
	if r.maxBytes > 0 && int64(len(b)) > r.maxBytes {
		return nil, fmt.Errorf("%w: %s exceeds max_bytes (%d)", contract.ErrInputRead, name, r.maxBytes)
	}
	return b, nil
}
