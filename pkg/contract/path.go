package contract

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// NormalizeFileID 规范化路径，统一为跨平台稳定的 FileID。
// 规则：
// - 使用正斜杠分隔符
// - 清理多余分隔符与路径片段（.、..）
// - 保留相对/绝对语义，不做隐式绝对化
func NormalizeFileID(p string) FileID {
	s := strings.ReplaceAll(p, "\\", "/")
	return FileID(path.Clean(s))
}

// OutputSuffix 为所有输出文件的固定后缀。
const OutputSuffix = ".out"

// bucketLayout: 桶上界的文件名格式 YYYYMMDDHHMMSS。
const bucketLayout = "20060102150405"

// SequentialName 生成 lines/bytes 方法的输出名：{base}{n}.out。
func SequentialName(base string, n uint64) ArtifactID {
	return ArtifactID(fmt.Sprintf("%s%d%s", base, n, OutputSuffix))
}

// BucketName 生成 date 方法的输出名：{base}{upper:YYYYMMDDHHMMSS}.out。
func BucketName(base string, upper time.Time) ArtifactID {
	return ArtifactID(base + upper.UTC().Format(bucketLayout) + OutputSuffix)
}
