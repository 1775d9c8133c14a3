package cubecache

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"crime-hotspots/internal/cube"
	"crime-hotspots/internal/logger"
)

// 文档注释：文件制品存储
// 背景：每个键一个 <name>.cube 文件，适合单机部署的低内存重启路径；先写临时文件再重命名，读者不会看到半写文件。
// 约束：目录不存在时在首次写入时创建；名称只由 CacheKey 生成，不含路径分隔符。
type File struct {
	Dir string
}

func NewFile(dir string) *File { return &File{Dir: dir} }

func (f *File) path(name string) string { return filepath.Join(f.Dir, name+".cube") }

func (f *File) Has(_ context.Context, name string) (bool, error) {
	_, err := os.Stat(f.path(name))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (f *File) Get(_ context.Context, name string) ([]byte, error) {
	b, err := os.ReadFile(f.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, cube.ErrCacheMiss
	}
	return b, err
}

func (f *File) PutIfAbsent(ctx context.Context, name string, b []byte) error {
	if ok, err := f.Has(ctx, name); err != nil || ok {
		return err
	}
	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(f.Dir, name+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), f.path(name)); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	logger.L().Debug("filecache_written", "path", f.path(name), "bytes", len(b))
	return nil
}

func (f *File) Delete(_ context.Context, name string) error {
	err := os.Remove(f.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
