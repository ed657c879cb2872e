package blob

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"
)

// memoryHost 内存对象的虚拟访问域名
const memoryHost = "https://memory.blob.plantuml-chatbot.dev"

type memoryObject struct {
	data        []byte
	contentType string
	uploadedAt  time.Time
}

// MemoryStore 内存后端,用于测试和临时运行
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

// NewMemoryStore 创建内存后端
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]memoryObject)}
}

// Put 上传对象
func (s *MemoryStore) Put(ctx context.Context, path string, data []byte, opts PutOptions) (PutResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := make([]byte, len(data))
	copy(buf, data)
	s.objects[path] = memoryObject{
		data:        buf,
		contentType: opts.ContentType,
		uploadedAt:  time.Now(),
	}
	return PutResult{URL: memoryHost + "/" + path}, nil
}

// Head 查询对象元信息
func (s *MemoryStore) Head(ctx context.Context, path string) (ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[path]
	if !ok {
		return ObjectInfo{}, ErrNotFound
	}
	return ObjectInfo{
		Pathname:   path,
		URL:        memoryHost + "/" + path,
		Size:       int64(len(obj.data)),
		UploadedAt: obj.uploadedAt,
	}, nil
}

// Get 按 URL 读取对象
func (s *MemoryStore) Get(ctx context.Context, objectURL string) ([]byte, error) {
	u, err := url.Parse(objectURL)
	if err != nil {
		return nil, err
	}
	key := strings.TrimPrefix(u.Path, "/")

	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	buf := make([]byte, len(obj.data))
	copy(buf, obj.data)
	return buf, nil
}

// List 按前缀枚举对象
func (s *MemoryStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var infos []ObjectInfo
	for path, obj := range s.objects {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		infos = append(infos, ObjectInfo{
			Pathname:   path,
			URL:        memoryHost + "/" + path,
			Size:       int64(len(obj.data)),
			UploadedAt: obj.uploadedAt,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Pathname < infos[j].Pathname })
	return infos, nil
}

// Delete 按 URL 删除对象
func (s *MemoryStore) Delete(ctx context.Context, objectURL string) error {
	u, err := url.Parse(objectURL)
	if err != nil {
		return err
	}
	key := strings.TrimPrefix(u.Path, "/")

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.objects[key]; !ok {
		return ErrNotFound
	}
	delete(s.objects, key)
	return nil
}
