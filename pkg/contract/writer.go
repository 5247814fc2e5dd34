package contract

import (
	"context"
	"io"
)

// ArtifactID: 与 FileID 等价的输出工件标识（语义别名）。
type ArtifactID = FileID

// Writer: 将一个分片以独占创建的方式持久化到目标介质（文件系统/对象存储等）。
// 约束：
//  1. 同一 ArtifactID 至多创建一次；目标已存在返回 ErrFileExists，不覆盖、不追加；
//  2. 创建后的写入失败返回 ErrIO（致命）；
//  3. 按字节透传，不读取/修改业务内容（压缩编码除外）；
//  4. ctx 取消需尽快返回；错误直接上抛（不做重试/回退，不清理已写出的分片）。
type Writer interface {
	Write(ctx context.Context, id ArtifactID, r io.Reader) error
}

// Notifier: 可选接口。Writer 若实现该接口，拆分器会通过它上报非致命提示
// （例如边界时间无法解析而回退到无界）。
type Notifier interface {
	Warn(msg string)
}

// Warn 在 w 实现 Notifier 时转发提示，否则忽略。
func Warn(w Writer, msg string) {
	if n, ok := w.(Notifier); ok {
		n.Warn(msg)
	}
}
