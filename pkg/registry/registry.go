package registry

import (
	"fmt"

	"logsplit/internal/timestamp"
	"logsplit/pkg/contract"
	rfs "logsplit/plugins/reader/filesystem"
	sdate "logsplit/plugins/splitter/date"
	slb "logsplit/plugins/splitter/linebyte"
	wfs "logsplit/plugins/writer/filesystem"
	wminio "logsplit/plugins/writer/minio"
)

// Options 汇总各组件实现的具体选项（由配置层解码后传入）。
type Options struct {
	Reader rfs.Options
	FS     wfs.Options
	Minio  wminio.Options
}

// NewReader 工厂签名。
type NewReader func(opts Options) (contract.Reader, error)

// NewSplitter 工厂签名：接收运行期拆分参数。
type NewSplitter func(opts contract.SplitOptions) (contract.Splitter, error)

// NewWriter 工厂签名。
type NewWriter func(opts Options) (contract.Writer, error)

// Reader 工厂注册表（显式、零反射）。
var Reader = map[string]NewReader{
	// fs: 文件系统/STDIN Reader
	"fs": func(opts Options) (contract.Reader, error) {
		o := opts.Reader
		return rfs.New(&o), nil
	},
}

func newLineByte(opts contract.SplitOptions) (contract.Splitter, error) {
	return slb.New(slb.Options{
		Method:     opts.Method,
		BaseName:   opts.BaseName,
		LowerBound: opts.LowerBound,
		UpperBound: opts.UpperBound,
		ChunkSize:  opts.ChunkSize,
	})
}

// Splitter 工厂注册表，键即拆分方法名。
var Splitter = map[string]NewSplitter{
	string(contract.MethodLines): newLineByte,
	string(contract.MethodBytes): newLineByte,
	// date: 按行首时间戳分桶
	string(contract.MethodDate): func(opts contract.SplitOptions) (contract.Splitter, error) {
		ex, err := timestamp.ForMode(opts.TimestampMode)
		if err != nil {
			return nil, err
		}
		return sdate.New(sdate.Options{
			BaseName:    opts.BaseName,
			Granularity: opts.Granularity,
			BeginTime:   opts.BeginTime,
			EndTime:     opts.EndTime,
			Extractor:   ex,
			OutOfOrder:  opts.OutOfOrder,
		})
	},
}

// Writer 工厂注册表。
var Writer = map[string]NewWriter{
	// fs: 文件系统 Writer（独占创建，可选原子发布与压缩）
	"fs": func(opts Options) (contract.Writer, error) {
		o := opts.FS
		return wfs.New(&o)
	},
	// minio: S3 兼容对象存储
	"minio": func(opts Options) (contract.Writer, error) {
		o := opts.Minio
		return wminio.New(&o)
	},
}

// LookupSplitter 按方法名构造拆分器；未知方法返回 ErrInvalidMethod。
func LookupSplitter(opts contract.SplitOptions) (contract.Splitter, error) {
	f, ok := Splitter[string(opts.Method)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", contract.ErrInvalidMethod, opts.Method)
	}
	return f(opts)
}
