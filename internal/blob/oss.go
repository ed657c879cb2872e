package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"cnb.cool/zhiqiangwang/pkg/logx"
	oss "github.com/aliyun/aliyun-oss-go-sdk/oss"
)

// OSSStore 阿里云 OSS 后端
// OSS v1 SDK 不接受 context,超时由 SDK 内部的 HTTP 客户端控制
type OSSStore struct {
	bucket     *oss.Bucket
	bucketName string
	endpoint   string
}

// NewOSSStore 创建 OSS 后端
func NewOSSStore(endpoint, bucketName, accessKeyID, accessKeySecret string) (*OSSStore, error) {
	if endpoint == "" || bucketName == "" {
		return nil, fmt.Errorf("oss endpoint and bucket are required")
	}

	client, err := oss.New(endpoint, accessKeyID, accessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create oss client: %w", err)
	}

	bucket, err := client.Bucket(bucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to open oss bucket %s: %w", bucketName, err)
	}

	logx.Info("OSS blob store initialized, bucket %s, endpoint %s", bucketName, endpoint)

	return &OSSStore{
		bucket:     bucket,
		bucketName: bucketName,
		endpoint:   endpoint,
	}, nil
}

// Put 上传对象
func (s *OSSStore) Put(ctx context.Context, path string, data []byte, opts PutOptions) (PutResult, error) {
	options := []oss.Option{oss.ContentType(opts.ContentType)}
	if opts.Public {
		options = append(options, oss.ObjectACL(oss.ACLPublicRead))
	}
	if !opts.AllowOverwrite {
		options = append(options, oss.ForbidOverWrite(true))
	}

	if err := s.bucket.PutObject(path, bytes.NewReader(data), options...); err != nil {
		return PutResult{}, fmt.Errorf("failed to put object %s: %w", path, err)
	}

	return PutResult{URL: s.objectURL(path)}, nil
}

// Head 查询对象元信息
func (s *OSSStore) Head(ctx context.Context, path string) (ObjectInfo, error) {
	meta, err := s.bucket.GetObjectDetailedMeta(path)
	if err != nil {
		if isOSSNotFound(err) {
			return ObjectInfo{}, ErrNotFound
		}
		return ObjectInfo{}, fmt.Errorf("failed to head object %s: %w", path, err)
	}

	info := ObjectInfo{
		Pathname: path,
		URL:      s.objectURL(path),
	}
	if t, err := http.ParseTime(meta.Get("Last-Modified")); err == nil {
		info.UploadedAt = t
	}
	return info, nil
}

// Get 按 URL 读取对象
func (s *OSSStore) Get(ctx context.Context, objectURL string) ([]byte, error) {
	key, err := s.keyFromURL(objectURL)
	if err != nil {
		return nil, err
	}

	body, err := s.bucket.GetObject(key)
	if err != nil {
		if isOSSNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object body %s: %w", key, err)
	}
	return data, nil
}

// List 按前缀枚举对象
func (s *OSSStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var infos []ObjectInfo
	marker := oss.Marker("")

	for {
		result, err := s.bucket.ListObjects(oss.Prefix(prefix), oss.MaxKeys(1000), marker)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects with prefix %s: %w", prefix, err)
		}

		for _, obj := range result.Objects {
			infos = append(infos, ObjectInfo{
				Pathname:   obj.Key,
				URL:        s.objectURL(obj.Key),
				Size:       obj.Size,
				UploadedAt: obj.LastModified,
			})
		}

		if !result.IsTruncated {
			break
		}
		marker = oss.Marker(result.NextMarker)
	}

	return infos, nil
}

// Delete 按 URL 删除对象
func (s *OSSStore) Delete(ctx context.Context, objectURL string) error {
	key, err := s.keyFromURL(objectURL)
	if err != nil {
		return err
	}

	if err := s.bucket.DeleteObject(key); err != nil {
		if isOSSNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

// objectURL 拼接对象的公共访问地址
// OSS 的公共访问域名形如 https://{bucket}.{endpoint}/{key}
func (s *OSSStore) objectURL(path string) string {
	host := strings.TrimPrefix(strings.TrimPrefix(s.endpoint, "https://"), "http://")
	return fmt.Sprintf("https://%s.%s/%s", s.bucketName, host, path)
}

// keyFromURL 从 URL 还原对象 key
func (s *OSSStore) keyFromURL(objectURL string) (string, error) {
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

// isOSSNotFound 判断是否为对象不存在错误
func isOSSNotFound(err error) bool {
	var svcErr oss.ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.StatusCode == http.StatusNotFound
	}
	return false
}
