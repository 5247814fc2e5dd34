package contract

import "context"

// Reader: 输入源抽象（文件或 STDIN "-"）。
// 约束：一次性读入全部字节；失败包装 ErrInputRead；不做解码/业务解析。
type Reader interface {
	ReadAll(ctx context.Context, path string) ([]byte, error)
}
