package filesystem

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"logsplit/internal/codec"
	"logsplit/pkg/contract"
)

// Options: 最小必要选项。
type Options struct {
	// OutputDir: 输出根目录。为空时 id 即目标路径（基名可自带目录）。
	OutputDir string `json:"output_dir" mapstructure:"dir"`
	// Atomic: 是否先写同目录临时文件，完整落盘后再以独占方式发布。
	// 默认值：true。显式 false 时直接独占创建目标文件并写入。
	Atomic *bool `json:"atomic,omitempty" mapstructure:"atomic"`
	// Flat: 仅保留文件名，丢弃 id 中的目录层级（需配合 OutputDir）。默认 false。
	Flat *bool `json:"flat,omitempty" mapstructure:"flat"`
	// Compress: 输出编码（none|gzip|zstd|lz4|xz），目标名追加对应扩展名。
	Compress string `json:"compress,omitempty" mapstructure:"compress"`
	// PermFile/PermDir: 可选权限；为 0 表示使用默认。
	PermFile os.FileMode `json:"perm_file,omitempty" mapstructure:"perm_file"`
	PermDir  os.FileMode `json:"perm_dir,omitempty" mapstructure:"perm_dir"`
	// BufSize: 写缓冲区大小；<=0 使用实现默认。
	BufSize int `json:"buf_size,omitempty" mapstructure:"buf_size"`
}

type FS struct {
	root    string
	atomic  bool
	flat    bool
	codec   codec.Codec
	permF   os.FileMode
	permD   os.FileMode
	bufSize int
}

// New 创建文件系统 Writer 实现。
func New(opts *Options) (*FS, error) {
	if opts == nil {
		opts = &Options{}
	}
	c, err := codec.Lookup(opts.Compress)
	if err != nil {
		return nil, err
	}
	bsz := opts.BufSize
	if bsz <= 0 {
		bsz = 64 * 1024
	}
	pf := opts.PermFile
	if pf == 0 {
		pf = 0o644
	}
	pd := opts.PermDir
	if pd == 0 {
		pd = 0o755
	}
	flat := false
	if opts.Flat != nil {
		flat = *opts.Flat
	}
	atomic := true
	if opts.Atomic != nil {
		atomic = *opts.Atomic
	}
	root := strings.TrimSpace(opts.OutputDir)
	if flat && root == "" {
		return nil, fmt.Errorf("filesystem writer: flat requires output_dir")
	}
	return &FS{root: root, atomic: atomic, flat: flat, codec: c, permF: pf, permD: pd, bufSize: bsz}, nil
}

var _ contract.Writer = (*FS)(nil)

// Write 以独占方式创建 id 对应的目标文件并写入 r 的全部字节。
// 目标已存在返回 ErrFileExists；创建或写入失败返回 ErrIO。
func (w *FS) Write(ctx context.Context, id contract.ArtifactID, r io.Reader) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	dest, err := w.mapPath(id + contract.ArtifactID(w.codec.Ext()))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), w.permD); err != nil {
		return fmt.Errorf("%w: mkdir %s: %w", contract.ErrIO, filepath.Dir(dest), err)
	}

	if w.atomic {
		return w.writeAtomic(ctx, dest, r)
	}
	return w.writeExclusive(ctx, dest, r)
}

// Path 返回 id 最终落盘的路径（含编码扩展名）。
func (w *FS) Path(id contract.ArtifactID) (string, error) {
	return w.mapPath(id + contract.ArtifactID(w.codec.Ext()))
}

// mapPath: Clean + Join + 越界校验。
func (w *FS) mapPath(id contract.ArtifactID) (string, error) {
	rel := filepath.Clean(filepath.FromSlash(string(id)))
	if rel == "." || rel == "" {
		return "", contract.ErrPathInvalid
	}
	// 未配置根目录：按原样使用
	if w.root == "" {
		return rel, nil
	}
	if w.flat {
		rel = filepath.Base(rel)
		if rel == "." || rel == ".." || rel == string(filepath.Separator) {
			return "", contract.ErrPathInvalid
		}
		return filepath.Join(w.root, rel), nil
	}
	// 禁止绝对路径、父级逃逸、Windows 卷名
	if filepath.IsAbs(rel) {
		return "", contract.ErrPathInvalid
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", contract.ErrPathInvalid
	}
	if vol := filepath.VolumeName(rel); vol != "" {
		return "", contract.ErrPathInvalid
	}
	return filepath.Join(w.root, rel), nil
}

func createErr(dest string, err error) error {
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%w: %s", contract.ErrFileExists, dest)
	}
	return fmt.Errorf("%w: create %s: %w", contract.ErrIO, dest, err)
}

// encodeTo: 缓冲 + 编码后写入 dst；返回前刷出编码尾部与缓冲。
func (w *FS) encodeTo(ctx context.Context, dst io.Writer, r io.Reader) error {
	bw := bufio.NewWriterSize(dst, w.bufSize)
	enc, err := w.codec.Wrap(bw)
	if err != nil {
		return err
	}
	if _, err := io.Copy(enc, readerWithCtx(ctx, r)); err != nil {
		_ = enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return bw.Flush()
}

func (w *FS) writeExclusive(ctx context.Context, dest string, r io.Reader) error {
	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, w.permF)
	if err != nil {
		return createErr(dest, err)
	}
	// 创建之后的任何失败均为 ErrIO；已创建的文件保留在磁盘上
	if err := w.encodeTo(ctx, f, r); err != nil {
		_ = f.Close()
		return fmt.Errorf("%w: write %s: %w", contract.ErrIO, dest, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("%w: sync %s: %w", contract.ErrIO, dest, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %w", contract.ErrIO, dest, err)
	}
	return nil
}

func (w *FS) writeAtomic(ctx context.Context, dest string, r io.Reader) error {
	// 目标已存在时尽早失败，避免白写临时文件
	if _, err := os.Lstat(dest); err == nil {
		return fmt.Errorf("%w: %s", contract.ErrFileExists, dest)
	}
	dir := filepath.Dir(dest)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: create temp in %s: %w", contract.ErrIO, dir, err)
	}
	tmpPath := tmp.Name()
	_ = os.Chmod(tmpPath, w.permF)

	fail := func(op string, err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: %s %s: %w", contract.ErrIO, op, dest, err)
	}
	if err := w.encodeTo(ctx, tmp, r); err != nil {
		return fail("write", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("sync", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: close %s: %w", contract.ErrIO, dest, err)
	}
	// 平台特定的独占发布：目标出现则失败，不覆盖
	if err := publish(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return createErr(dest, err)
	}
	// 最佳努力：同步父目录，提升崩溃安全性
	_ = syncDir(dir)
	return nil
}

// readerWithCtx: 在每次 Read 前检查 ctx 是否已取消。
func readerWithCtx(ctx context.Context, r io.Reader) io.Reader {
	return &ctxReader{ctx: ctx, r: r}
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *ctxReader) Read(p []byte) (int, error) {
	select {
	case <-cr.ctx.Done():
		return 0, cr.ctx.Err()
	default:
	}
	return cr.r.Read(p)
}
