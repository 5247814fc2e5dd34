//go:build !windows

package filesystem

import (
	"errors"
	"io/fs"
	"os"
)

// publish 以硬链接独占发布 tmpPath 到 dest；dest 已存在时返回 fs.ErrExist。
// 不支持硬链接的文件系统上，先独占创建占位文件，再以 rename 覆盖该占位。
func publish(tmpPath, dest string) error {
	err := os.Link(tmpPath, dest)
	if err == nil {
		return os.Remove(tmpPath)
	}
	if errors.Is(err, fs.ErrExist) {
		return err
	}
	f, perr := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if perr != nil {
		return perr
	}
	_ = f.Close()
	return os.Rename(tmpPath, dest)
}

// syncDir best-effort fsync parent directory to persist metadata.
func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
