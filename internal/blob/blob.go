package blob

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/F12-Syntex/plantuml-chatbot/internal/config"
)

// ErrNotFound 对象不存在
var ErrNotFound = errors.New("blob: object not found")

// PutOptions 上传选项
type PutOptions struct {
	ContentType    string
	Public         bool
	AllowOverwrite bool
}

// PutResult 上传结果
type PutResult struct {
	// URL 对象的公共访问地址
	URL string
}

// ObjectInfo 对象元信息
type ObjectInfo struct {
	Pathname   string
	URL        string
	Size       int64
	UploadedAt time.Time
}

// Store 对象存储后端契约
// 后端只保证 put / head / get / list / delete 五个原语,
// list 为最终一致,不提供任何原子的读改写能力
type Store interface {
	// Put 上传对象,返回可访问的 URL
	Put(ctx context.Context, path string, data []byte, opts PutOptions) (PutResult, error)
	// Head 按路径查询对象元信息,不存在返回 ErrNotFound
	Head(ctx context.Context, path string) (ObjectInfo, error)
	// Get 按 URL 读取对象内容,不存在返回 ErrNotFound
	Get(ctx context.Context, url string) ([]byte, error)
	// List 按前缀枚举对象
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	// Delete 按 URL 删除对象
	Delete(ctx context.Context, url string) error
}

// New 根据配置创建对象存储后端
func New(cfg *config.BlobConfig) (Store, error) {
	switch cfg.Provider {
	case "cos":
		return NewCOSStore(cfg.COS.BucketURL, cfg.COS.SecretID, cfg.COS.SecretKey)
	case "oss":
		return NewOSSStore(cfg.OSS.Endpoint, cfg.OSS.Bucket, cfg.OSS.AccessKeyID, cfg.OSS.AccessKeySecret)
	case "sqlite":
		return NewSQLiteStore(cfg.SQLite.Path)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown blob provider %q", cfg.Provider)
	}
}
