package linebyte

import (
	"bytes"
	"context"
	"fmt"

	"logsplit/pkg/contract"
)

// Options 为 lines/bytes 拆分参数。计数单位由 Method 决定。
type Options struct {
	Method     contract.Method
	BaseName   string
	LowerBound uint64
	UpperBound uint64
	ChunkSize  uint64
}

// Splitter 按固定行数或字节数切分输入。
// 单位区间为 [LowerBound, UpperBound]（1 起始，闭区间）。
// bytes 方法在分片达到名义大小后总是继续读完下一行（即使已止于换行），分片从不截断一行。
type Splitter struct {
	byLine bool
	base   string
	lower  uint64
	upper  uint64
	size   uint64
}

var _ contract.Splitter = (*Splitter)(nil)

// New 校验参数并构造拆分器。
func New(opts Options) (*Splitter, error) {
	var byLine bool
	switch opts.Method {
	case contract.MethodLines:
		byLine = true
	case contract.MethodBytes:
	default:
		return nil, fmt.Errorf("%w: %q is not lines/bytes", contract.ErrInvalidMethod, opts.Method)
	}
	if opts.LowerBound < 1 {
		return nil, fmt.Errorf("linebyte: lower_bound must be >= 1")
	}
	if opts.ChunkSize < 1 {
		return nil, fmt.Errorf("linebyte: chunk_size must be >= 1")
	}
	return &Splitter{
		byLine: byLine,
		base:   opts.BaseName,
		lower:  opts.LowerBound,
		upper:  opts.UpperBound,
		size:   opts.ChunkSize,
	}, nil
}

// state 为单个分片的累积状态，由 step 逐单位推进。
type state struct {
	chunk   []byte
	counter uint64
	index   uint64
	stats   contract.Stats
}

// Split 跳过 LowerBound-1 个单位，然后累积直到 UpperBound 或输入耗尽。
func (s *Splitter) Split(ctx context.Context, src contract.Source, w contract.Writer) (contract.Stats, error) {
	st := &state{}
	if s.upper < s.lower {
		return st.stats, nil
	}
	if !s.skip(src) {
		return st.stats, nil
	}
	for x := s.lower; ; x++ {
		if err := ctx.Err(); err != nil {
			return st.stats, err
		}
		done, err := s.step(ctx, st, src, w, x)
		if err != nil || done {
			return st.stats, err
		}
		// 以相等判断结束，避免 upper 为 MaxUint64 时 x++ 溢出
		if x == s.upper {
			return st.stats, nil
		}
	}
}

// skip 丢弃 lower-1 个单位；中途耗尽返回 false。
func (s *Splitter) skip(src contract.Source) bool {
	for i := uint64(1); i < s.lower; i++ {
		if len(s.pull(src)) == 0 {
			return false
		}
	}
	return true
}

// pull 取一个单位：一整行或一个字节；耗尽时返回空。
func (s *Splitter) pull(src contract.Source) []byte {
	if s.byLine {
		return src.ReadLine()
	}
	c, ok := src.Next()
	if !ok {
		return nil
	}
	return []byte{c}
}

// step 处理第 x 个单位。返回 done=true 表示本次运行结束。
func (s *Splitter) step(ctx context.Context, st *state, src contract.Source, w contract.Writer, x uint64) (bool, error) {
	unit := s.pull(src)
	if len(unit) == 0 {
		return true, s.flush(ctx, st, w)
	}
	st.chunk = append(st.chunk, unit...)
	st.counter++
	if st.counter < s.size && x != s.upper {
		return false, nil
	}
	if !s.byLine {
		// 边界处总是再读到下一个换行符（含）
		st.chunk = append(st.chunk, src.ReadLine()...)
	}
	if len(st.chunk) == 0 {
		return true, nil
	}
	return false, s.flush(ctx, st, w)
}

// flush 写出非空分片并重置计数；空分片不产生文件。
func (s *Splitter) flush(ctx context.Context, st *state, w contract.Writer) error {
	if len(st.chunk) == 0 {
		return nil
	}
	id := contract.SequentialName(s.base, st.index)
	if err := w.Write(ctx, id, bytes.NewReader(st.chunk)); err != nil {
		return fmt.Errorf("write %s: %w", id, err)
	}
	st.stats.Files++
	st.stats.Bytes += int64(len(st.chunk))
	st.index++
	st.counter = 0
	st.chunk = st.chunk[:0]
	return nil
}
