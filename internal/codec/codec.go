// Package codec 为输出分片提供可选的压缩编码。
package codec

import (
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
)

// Codec 描述一种输出编码。
type Codec interface {
	Name() string
	// Ext 为附加到输出名后的扩展名（none 为空）。
	Ext() string
	ContentType() string
	// Wrap 返回写入 w 的编码器；Close 刷出尾部但不关闭 w。
	Wrap(w io.Writer) (io.WriteCloser, error)
}

const (
	None = "none"
	Gzip = "gzip"
	Zstd = "zstd"
	LZ4  = "lz4"
	XZ   = "xz"
)

// Names 返回全部受支持的编码名（稳定顺序）。
func Names() []string { return []string{None, Gzip, Zstd, LZ4, XZ} }

// Lookup 按名称返回编码；空串等价于 none。
func Lookup(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", None:
		return plain{}, nil
	case Gzip, "gz":
		return gzipCodec{}, nil
	case Zstd, "zst":
		return zstdCodec{}, nil
	case LZ4:
		return lz4Codec{}, nil
	case XZ:
		return xzCodec{}, nil
	default:
		return nil, fmt.Errorf("codec: unknown compression %q", name)
	}
}

type plain struct{}

func (plain) Name() string        { return None }
func (plain) Ext() string         { return "" }
func (plain) ContentType() string { return "text/plain; charset=utf-8" }
func (plain) Wrap(w io.Writer) (io.WriteCloser, error) {
	return nopWriteCloser{w}, nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

type gzipCodec struct{}

func (gzipCodec) Name() string        { return Gzip }
func (gzipCodec) Ext() string         { return ".gz" }
func (gzipCodec) ContentType() string { return "application/gzip" }
func (gzipCodec) Wrap(w io.Writer) (io.WriteCloser, error) {
	return gzip.NewWriter(w), nil
}

type zstdCodec struct{}

func (zstdCodec) Name() string        { return Zstd }
func (zstdCodec) Ext() string         { return ".zst" }
func (zstdCodec) ContentType() string { return "application/zstd" }
func (zstdCodec) Wrap(w io.Writer) (io.WriteCloser, error) {
	// 单分片同步编码，无需后台 goroutine
	return zstd.NewWriter(w, zstd.WithEncoderConcurrency(1))
}

type lz4Codec struct{}

func (lz4Codec) Name() string        { return LZ4 }
func (lz4Codec) Ext() string         { return ".lz4" }
func (lz4Codec) ContentType() string { return "application/x-lz4" }
func (lz4Codec) Wrap(w io.Writer) (io.WriteCloser, error) {
	zw := lz4.NewWriter(w)
	if err := zw.Apply(lz4.ConcurrencyOption(1)); err != nil {
		return nil, err
	}
	return zw, nil
}

type xzCodec struct{}

func (xzCodec) Name() string        { return XZ }
func (xzCodec) Ext() string         { return ".xz" }
func (xzCodec) ContentType() string { return "application/x-xz" }
func (xzCodec) Wrap(w io.Writer) (io.WriteCloser, error) {
	return xz.NewWriter(w)
}
