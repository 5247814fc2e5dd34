// Package source 提供内存输入上的单一可寻址游标。
//
// 输入在运行开始时一次性读入；拆分器按字节或按行顺序消费。
// 需要“预扫描”的场景（日期方法寻找首个有效时间戳）通过 Position/Seek
// 在同一缓冲上回退，而不是复制游标。
package source

import (
	"bytes"

	"logsplit/pkg/contract"
)

// Buffer 持有全部输入字节与当前位置。
type Buffer struct {
	data []byte
	pos  int
}

var _ contract.Source = (*Buffer)(nil)

// New 基于 data 构造游标；data 在游标生命周期内不得被修改。
func New(data []byte) *Buffer { return &Buffer{data: data} }

// Len 返回输入总字节数。
func (b *Buffer) Len() int { return len(b.data) }

// Exhausted 报告是否已无剩余字节。
func (b *Buffer) Exhausted() bool { return b.pos >= len(b.data) }

// Peek 返回下一个字节但不前进。
func (b *Buffer) Peek() (byte, bool) {
	if b.pos >= len(b.data) {
		return 0, false
	}
	return b.data[b.pos], true
}

// Next 返回下一个字节并前进一位。
func (b *Buffer) Next() (byte, bool) {
	if b.pos >= len(b.data) {
		return 0, false
	}
	c := b.data[b.pos]
	b.pos++
	return c, true
}

// ReadLine 读取直到并包含下一个 '\n'，或直到输入结束。
// 返回值与底层缓冲共享存储，调用方追加前无需拷贝，但不得原地修改。
func (b *Buffer) ReadLine() []byte {
	if b.pos >= len(b.data) {
		return nil
	}
	rest := b.data[b.pos:]
	n := len(rest)
	if i := bytes.IndexByte(rest, '\n'); i >= 0 {
		n = i + 1
	}
	b.pos += n
	return rest[:n:n]
}

func (b *Buffer) Position() int { return b.pos }

// Seek 把位置移动到 pos；越界时夹取到 [0, Len]。
func (b *Buffer) Seek(pos int) {
	switch {
	case pos < 0:
		pos = 0
	case pos > len(b.data):
		pos = len(b.data)
	}
	b.pos = pos
}
