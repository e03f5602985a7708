package data

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"reportvault/internal/report/biz"
)

// 存储文件名中原始文件名部分的最大长度
const maxNameSuffixLen = 100

// LocalBlobStore 实现 biz.BlobStore 接口，将附件存放在本地平面目录中
type LocalBlobStore struct {
	dir string
}

// NewLocalBlobStore 创建本地 blob 存储，目录不存在时自动创建
func NewLocalBlobStore(dir string) (*LocalBlobStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	return &LocalBlobStore{dir: dir}, nil
}

// Dir 返回存储目录
func (s *LocalBlobStore) Dir() string {
	return s.dir
}

// Put 写入文件流并返回引用
//
// 先写入临时文件再 rename 到最终名字：上传中断不会留下可被引用的半成品。
// 文件名由纳秒时间戳 + 随机片段 + 清洗后的原始名组成，同一瞬间的并发写入
// 也不会冲突。
func (s *LocalBlobStore) Put(ctx context.Context, r io.Reader, originalName string) (*biz.BlobRef, error) {
	storedName := fmt.Sprintf("%d-%s-%s",
		time.Now().UnixNano(),
		uuid.New().String()[:8],
		sanitizeFileName(originalName))
	finalPath := filepath.Join(s.dir, storedName)
	tmpPath := finalPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	_, err = io.Copy(f, r)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return nil, fmt.Errorf("failed to finalize file: %w", err)
	}

	return &biz.BlobRef{
		StoredName: storedName,
		StoredPath: finalPath,
	}, nil
}

// Remove 删除文件；文件不存在视为成功（幂等）
func (s *LocalBlobStore) Remove(ctx context.Context, ref *biz.BlobRef) error {
	err := os.Remove(s.resolve(ref))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove file: %w", err)
	}
	return nil
}

// Exists 检查文件是否存在
func (s *LocalBlobStore) Exists(ctx context.Context, ref *biz.BlobRef) bool {
	info, err := os.Stat(s.resolve(ref))
	return err == nil && !info.IsDir()
}

// Open 打开文件用于读取
func (s *LocalBlobStore) Open(ctx context.Context, ref *biz.BlobRef) (io.ReadCloser, error) {
	f, err := os.Open(s.resolve(ref))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, biz.ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, nil
}

func (s *LocalBlobStore) resolve(ref *biz.BlobRef) string {
	if ref.StoredPath != "" {
		return ref.StoredPath
	}
	return filepath.Join(s.dir, ref.StoredName)
}

// sanitizeFileName 清洗原始文件名：去掉路径部分，非安全字符替换为下划线
func sanitizeFileName(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == string(filepath.Separator) || name == "" {
		return "file"
	}

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	out := b.String()
	if len(out) > maxNameSuffixLen {
		out = out[len(out)-maxNameSuffixLen:]
	}
	return out
}
