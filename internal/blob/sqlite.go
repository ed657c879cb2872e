package blob

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cnb.cool/zhiqiangwang/pkg/logx"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// sqliteHost 本地对象的虚拟访问域名,保证 URL 形态与云端后端一致
const sqliteHost = "https://local.blob.plantuml-chatbot.dev"

// blobObject 对象表
type blobObject struct {
	Path        string `gorm:"primaryKey;size:512"`
	Data        []byte
	ContentType string    `gorm:"size:128"`
	UploadedAt  time.Time `gorm:"index"`
}

// TableName 指定表名
func (blobObject) TableName() string {
	return "blob_objects"
}

// SQLiteStore 本地 sqlite 后端,用于单机自托管部署
// 对外保持与云端对象存储相同的契约,上层不感知差异
type SQLiteStore struct {
	db *gorm.DB
}

// NewSQLiteStore 创建本地 sqlite 后端
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/blob.db"
	}

	// 确保数据目录存在
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect sqlite: %w", err)
	}

	// SQLite 只支持单个写入连接
	// 参见: https://github.com/glebarez/sqlite/issues/52
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sqlite database object: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&blobObject{}); err != nil {
		return nil, fmt.Errorf("failed to migrate blob table: %w", err)
	}

	logx.Info("SQLite blob store initialized, path %s", dbPath)

	return &SQLiteStore{db: db}, nil
}

// Put 上传对象
func (s *SQLiteStore) Put(ctx context.Context, path string, data []byte, opts PutOptions) (PutResult, error) {
	obj := blobObject{
		Path:        path,
		Data:        data,
		ContentType: opts.ContentType,
		UploadedAt:  time.Now(),
	}

	if !opts.AllowOverwrite {
		var count int64
		if err := s.db.WithContext(ctx).Model(&blobObject{}).Where("path = ?", path).Count(&count).Error; err != nil {
			return PutResult{}, fmt.Errorf("failed to check object %s: %w", path, err)
		}
		if count > 0 {
			return PutResult{}, fmt.Errorf("object %s already exists", path)
		}
	}

	if err := s.db.WithContext(ctx).Save(&obj).Error; err != nil {
		return PutResult{}, fmt.Errorf("failed to put object %s: %w", path, err)
	}

	return PutResult{URL: s.objectURL(path)}, nil
}

// Head 查询对象元信息
func (s *SQLiteStore) Head(ctx context.Context, path string) (ObjectInfo, error) {
	var obj blobObject
	if err := s.db.WithContext(ctx).First(&obj, "path = ?", path).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ObjectInfo{}, ErrNotFound
		}
		return ObjectInfo{}, fmt.Errorf("failed to head object %s: %w", path, err)
	}

	return ObjectInfo{
		Pathname:   obj.Path,
		URL:        s.objectURL(obj.Path),
		Size:       int64(len(obj.Data)),
		UploadedAt: obj.UploadedAt,
	}, nil
}

// Get 按 URL 读取对象
func (s *SQLiteStore) Get(ctx context.Context, objectURL string) ([]byte, error) {
	key, err := s.keyFromURL(objectURL)
	if err != nil {
		return nil, err
	}

	var obj blobObject
	if err := s.db.WithContext(ctx).First(&obj, "path = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	return obj.Data, nil
}

// List 按前缀枚举对象
func (s *SQLiteStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var objects []blobObject
	if err := s.db.WithContext(ctx).Where("path LIKE ?", prefix+"%").Order("path ASC").Find(&objects).Error; err != nil {
		return nil, fmt.Errorf("failed to list objects with prefix %s: %w", prefix, err)
	}

	infos := make([]ObjectInfo, 0, len(objects))
	for _, obj := range objects {
		infos = append(infos, ObjectInfo{
			Pathname:   obj.Path,
			URL:        s.objectURL(obj.Path),
			Size:       int64(len(obj.Data)),
			UploadedAt: obj.UploadedAt,
		})
	}
	return infos, nil
}

// Delete 按 URL 删除对象
func (s *SQLiteStore) Delete(ctx context.Context, objectURL string) error {
	key, err := s.keyFromURL(objectURL)
	if err != nil {
		return err
	}

	result := s.db.WithContext(ctx).Delete(&blobObject{}, "path = ?", key)
	if result.Error != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// objectURL 拼接对象的虚拟访问地址
func (s *SQLiteStore) objectURL(path string) string {
	return sqliteHost + "/" + path
}

// keyFromURL 从 URL 还原对象 key
func (s *SQLiteStore) keyFromURL(objectURL string) (string, error) {
	u, err := url.Parse(objectURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse object url: %w", err)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", fmt.Errorf("object url %s has no path", objectURL)
	}
	return key, nil
}
