package contract

import "context"

// Source: 内存输入上的单一可寻址游标。
// 位置单调前进，仅允许通过显式 Seek 回退。
type Source interface {
	// Peek 返回下一个字节但不前进；耗尽时 ok=false。
	Peek() (b byte, ok bool)
	// Next 返回下一个字节并前进一位；耗尽时 ok=false。
	Next() (b byte, ok bool)
	// ReadLine 读取直到并包含下一个 '\n'，或直到耗尽；空结果表示已耗尽。
	ReadLine() []byte
	Position() int
	Seek(pos int)
}

// Splitter: 消费 Source，把分片逐个交给 Writer。
// 约束：
// 1) 同步执行，无内部并发；
// 2) 分片按产出顺序写出，首个写出错误立即返回；
// 3) 返回的 Stats 在出错时反映已成功写出的部分。
type Splitter interface {
	Split(ctx context.Context, src Source, w Writer) (Stats, error)
}
