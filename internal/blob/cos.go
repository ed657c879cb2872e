package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cnb.cool/zhiqiangwang/pkg/logx"
	"github.com/tencentyun/cos-go-sdk-v5"
)

// COSStore 腾讯云 COS 后端
type COSStore struct {
	client *cos.Client
}

// NewCOSStore 创建 COS 后端
func NewCOSStore(bucketURL, secretID, secretKey string) (*COSStore, error) {
	if bucketURL == "" {
		return nil, fmt.Errorf("cos bucket_url is required")
	}

	u, err := url.Parse(bucketURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse cos bucket url: %w", err)
	}

	client := cos.NewClient(&cos.BaseURL{BucketURL: u}, &http.Client{
		Timeout: 30 * time.Second,
		Transport: &cos.AuthorizationTransport{
			SecretID:  secretID,
			SecretKey: secretKey,
		},
	})

	logx.Info("COS blob store initialized, bucket %s", u.Host)

	return &COSStore{client: client}, nil
}

// Put 上传对象
func (s *COSStore) Put(ctx context.Context, path string, data []byte, opts PutOptions) (PutResult, error) {
	putOpts := &cos.ObjectPutOptions{
		ObjectPutHeaderOptions: &cos.ObjectPutHeaderOptions{
			ContentType: opts.ContentType,
		},
	}
	if opts.Public {
		putOpts.ACLHeaderOptions = &cos.ACLHeaderOptions{XCosACL: "public-read"}
	}

	if _, err := s.client.Object.Put(ctx, path, bytes.NewReader(data), putOpts); err != nil {
		return PutResult{}, fmt.Errorf("failed to put object %s: %w", path, err)
	}

	return PutResult{URL: s.objectURL(path)}, nil
}

// Head 查询对象元信息
func (s *COSStore) Head(ctx context.Context, path string) (ObjectInfo, error) {
	resp, err := s.client.Object.Head(ctx, path, nil)
	if err != nil {
		if cos.IsNotFoundError(err) {
			return ObjectInfo{}, ErrNotFound
		}
		return ObjectInfo{}, fmt.Errorf("failed to head object %s: %w", path, err)
	}

	info := ObjectInfo{
		Pathname: path,
		URL:      s.objectURL(path),
		Size:     resp.ContentLength,
	}
	if t, err := http.ParseTime(resp.Header.Get("Last-Modified")); err == nil {
		info.UploadedAt = t
	}
	return info, nil
}

// Get 按 URL 读取对象
func (s *COSStore) Get(ctx context.Context, objectURL string) ([]byte, error) {
	key, err := s.keyFromURL(objectURL)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Object.Get(ctx, key, nil)
	if err != nil {
		if cos.IsNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object body %s: %w", key, err)
	}
	return data, nil
}

// List 按前缀枚举对象
func (s *COSStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var infos []ObjectInfo
	marker := ""

	for {
		result, _, err := s.client.Bucket.Get(ctx, &cos.BucketGetOptions{
			Prefix:  prefix,
			Marker:  marker,
			MaxKeys: 1000,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list objects with prefix %s: %w", prefix, err)
		}

		for _, obj := range result.Contents {
			info := ObjectInfo{
				Pathname: obj.Key,
				URL:      s.objectURL(obj.Key),
				Size:     obj.Size,
			}
			if t, err := time.Parse(time.RFC3339, obj.LastModified); err == nil {
				info.UploadedAt = t
			}
			infos = append(infos, info)
		}

		if !result.IsTruncated {
			break
		}
		marker = result.NextMarker
	}

	return infos, nil
}

// Delete 按 URL 删除对象
func (s *COSStore) Delete(ctx context.Context, objectURL string) error {
	key, err := s.keyFromURL(objectURL)
	if err != nil {
		return err
	}

	if _, err := s.client.Object.Delete(ctx, key); err != nil {
		if cos.IsNotFoundError(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

// objectURL 拼接对象的公共访问地址
func (s *COSStore) objectURL(path string) string {
	base := strings.TrimSuffix(s.client.BaseURL.BucketURL.String(), "/")
	return base + "/" + path
}

// keyFromURL 从 URL 还原对象 key
func (s *COSStore) keyFromURL(objectURL string) (string, error) {
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
