// Package date 按行首时间戳把日志分入固定宽度的时间桶，每个桶写出一个文件。
//
// 桶为半开区间 [lower, upper)，首桶下界为 begin_time 或输入中第一个有效时间戳。
// 越过上界的行触发写出（缓冲为空时写出空文件）并使桶前进一格；跨越多个空桶时只前进一格，
// 中间的空桶不产生文件，后续行并入紧随其后的桶（文件以该桶上界命名）。
package date

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"logsplit/internal/timestamp"
	"logsplit/pkg/contract"
)

// Options 为日期拆分参数。BeginTime/EndTime 为空表示未设置。
type Options struct {
	BaseName    string
	Granularity contract.Granularity
	BeginTime   string
	EndTime     string
	Extractor   timestamp.Extractor
	OutOfOrder  contract.OutOfOrder
}

type Splitter struct {
	base     string
	width    time.Duration
	begin    string
	end      string
	extract  timestamp.Extractor
	keepLate bool
}

var _ contract.Splitter = (*Splitter)(nil)

// New 校验参数并构造拆分器。Extractor 为空时使用 25 字节前缀提取。
func New(opts Options) (*Splitter, error) {
	width := opts.Granularity.Duration()
	if width <= 0 {
		return nil, fmt.Errorf("date: unknown granularity %q", opts.Granularity)
	}
	ex := opts.Extractor
	if ex == nil {
		ex = timestamp.Prefix{}
	}
	var keep bool
	switch opts.OutOfOrder {
	case "", contract.OutOfOrderDiscard:
	case contract.OutOfOrderKeep:
		keep = true
	default:
		return nil, fmt.Errorf("date: unknown out_of_order policy %q", opts.OutOfOrder)
	}
	return &Splitter{
		base:     opts.BaseName,
		width:    width,
		begin:    strings.TrimSpace(opts.BeginTime),
		end:      strings.TrimSpace(opts.EndTime),
		extract:  ex,
		keepLate: keep,
	}, nil
}

// Bucket 为半开时间区间 [Lower, Upper)。
type Bucket struct {
	Lower time.Time
	Upper time.Time
}

// Contains 报告 ts 是否落在桶内。
func (b Bucket) Contains(ts time.Time) bool {
	return !ts.Before(b.Lower) && ts.Before(b.Upper)
}

// state 为主遍历的累积状态，由 step 逐行推进。
type state struct {
	bucket  Bucket
	max     time.Time
	content []byte
	stats   contract.Stats
}

// Split 解析边界、定位首桶，然后逐行分桶写出。
func (s *Splitter) Split(ctx context.Context, src contract.Source, w contract.Writer) (contract.Stats, error) {
	lower := s.resolveMin(src, w)
	st := &state{
		bucket: Bucket{Lower: lower, Upper: lower.Add(s.width)},
		max:    s.resolveMax(w),
	}
	for {
		if err := ctx.Err(); err != nil {
			return st.stats, err
		}
		line := src.ReadLine()
		if len(line) == 0 {
			break
		}
		done, err := s.step(ctx, st, line, w)
		if err != nil || done {
			return st.stats, err
		}
	}
	return st.stats, s.flush(ctx, st, w, false)
}

// resolveMin 确定首桶下界。begin_time 未设置或无法解析时视为无界：
// 从当前位置预扫描第一个有效时间戳，扫描结束后回到原位置，主遍历仍从头开始。
// 输入中没有任何有效时间戳时返回 timestamp.Min。
func (s *Splitter) resolveMin(src contract.Source, w contract.Writer) time.Time {
	if s.begin != "" {
		ts, err := timestamp.Parse(s.begin)
		if err == nil {
			return ts
		}
		contract.Warn(w, fmt.Sprintf("begin_time: %v; using the beginning of the input", err))
	}
	mark := src.Position()
	defer src.Seek(mark)
	for {
		line := src.ReadLine()
		if len(line) == 0 {
			return timestamp.Min
		}
		if ts, ok := s.extract.Extract(line); ok {
			return ts
		}
	}
}

func (s *Splitter) resolveMax(w contract.Writer) time.Time {
	if s.end == "" {
		return timestamp.Max
	}
	ts, err := timestamp.Parse(s.end)
	if err != nil {
		contract.Warn(w, fmt.Sprintf("end_time: %v; using the end of the input", err))
		return timestamp.Max
	}
	return ts
}

// step 处理一行。返回 done=true 表示遇到晚于 end_time 的行，运行结束。
func (s *Splitter) step(ctx context.Context, st *state, line []byte, w contract.Writer) (bool, error) {
	ts, ok := s.extract.Extract(line)
	switch {
	case !ok:
		// 续行：归属当前打开的桶
		st.content = append(st.content, line...)
	case st.bucket.Contains(ts):
		st.content = append(st.content, line...)
	case !ts.Before(st.bucket.Upper) && ts.Before(st.max):
		// 越过桶边界：即使缓冲为空也写出该桶
		if err := s.flush(ctx, st, w, true); err != nil {
			return true, err
		}
		st.content = append(st.content, line...)
		st.bucket = Bucket{Lower: st.bucket.Upper, Upper: st.bucket.Upper.Add(s.width)}
	case ts.After(st.max):
		// ts > end_time：写出已缓冲内容，丢弃其余输入
		return true, s.flush(ctx, st, w, false)
	case ts.Before(st.bucket.Lower):
		// 迟到行
		if s.keepLate {
			st.content = append(st.content, line...)
		} else {
			st.content = st.content[:0]
		}
	default:
		// ts == end_time 且在桶外：丢弃该行，继续处理
	}
	return false, nil
}

// flush 以当前桶上界命名写出内容并清空缓冲。emptyOK=false 时跳过空内容。
func (s *Splitter) flush(ctx context.Context, st *state, w contract.Writer, emptyOK bool) error {
	if len(st.content) == 0 && !emptyOK {
		return nil
	}
	id := contract.BucketName(s.base, st.bucket.Upper)
	if err := w.Write(ctx, id, bytes.NewReader(st.content)); err != nil {
		return fmt.Errorf("write %s: %w", id, err)
	}
	st.stats.Files++
	st.stats.Bytes += int64(len(st.content))
	st.content = st.content[:0]
	return nil
}
