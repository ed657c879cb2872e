package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"cnb.cool/zhiqiangwang/pkg/logx"
	"github.com/F12-Syntex/plantuml-chatbot/internal/blob"
)

// Resolver 对象地址解析器
//
// 对象存储只按 URL 取内容,而上层只知道对象路径,
// 解析按以下顺序尝试,任一阶段成功即缓存结果:
//  1. 进程内 URL 缓存
//  2. 用已学习到的存储标识拼接 URL
//  3. head 权威查询(同时学习存储标识)
//
// 存储标识(对象 URL 的 origin)在进程生命周期内懒学习、只写一次语义,
// 仅用于省掉 head 探测,从不作为对象存在性的依据。
// 缓存和标识都是进程内状态,多实例间互不共享,各自重建。
type Resolver struct {
	store blob.Store

	mu     sync.RWMutex
	urls   map[string]string
	origin string
}

// New 创建解析器
// origin 可传入预置的公共访问地址(如配置了 public_base_url),为空则懒学习
func New(store blob.Store, origin string) *Resolver {
	return &Resolver{
		store:  store,
		urls:   make(map[string]string),
		origin: origin,
	}
}

// Fetch 按路径读取对象内容
// 对象不存在时返回 blob.ErrNotFound,其他错误原样返回,由调用方决定降级策略
func (r *Resolver) Fetch(ctx context.Context, path string) ([]byte, error) {
	// 阶段一: 进程内缓存
	if cached, ok := r.cachedURL(path); ok {
		data, err := r.store.Get(ctx, cached)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, blob.ErrNotFound) {
			return nil, err
		}
		// 缓存的 URL 已失效,清除后降级到下一阶段
		logx.Debug("cached url for %s is stale, falling through", path)
		r.Invalidate(path)
	}

	// 阶段二: 用存储标识拼接 URL
	if origin := r.Origin(); origin != "" {
		constructed := origin + "/" + path
		data, err := r.store.Get(ctx, constructed)
		if err == nil {
			r.Learn(path, constructed)
			return data, nil
		}
		if !errors.Is(err, blob.ErrNotFound) {
			return nil, err
		}
	}

	// 阶段三: head 权威查询,此处的 404 是终态
	return r.fetchByHead(ctx, path)
}

// FetchFresh 跳过缓存和拼接,直接走 head 权威查询
// 访问日志的读改写用它来压缩丢失更新的窗口
func (r *Resolver) FetchFresh(ctx context.Context, path string) ([]byte, error) {
	return r.fetchByHead(ctx, path)
}

// fetchByHead head 查询后按权威 URL 读取
func (r *Resolver) fetchByHead(ctx context.Context, path string) ([]byte, error) {
	info, err := r.store.Head(ctx, path)
	if err != nil {
		return nil, err
	}

	r.Learn(path, info.URL)

	data, err := r.store.Get(ctx, info.URL)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			// head 和 get 之间对象被删,按不存在处理
			r.Invalidate(path)
		}
		return nil, err
	}
	return data, nil
}

// Resolve 解析对象的删除地址,只走缓存和 head 两级
func (r *Resolver) Resolve(ctx context.Context, path string) (string, error) {
	if cached, ok := r.cachedURL(path); ok {
		return cached, nil
	}

	info, err := r.store.Head(ctx, path)
	if err != nil {
		return "", err
	}
	r.Learn(path, info.URL)
	return info.URL, nil
}

// Learn 记录一次成功解析的结果,并在首次观察到 URL 时学习存储标识
func (r *Resolver) Learn(path, objectURL string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.urls[path] = objectURL

	if r.origin == "" {
		if origin, err := extractOrigin(objectURL); err == nil {
			r.origin = origin
			logx.Debug("learned blob store origin %s", origin)
		}
	}
}

// Invalidate 清除某路径的缓存
func (r *Resolver) Invalidate(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.urls, path)
}

// Origin 返回已学习到的存储标识,未学习到返回空串
func (r *Resolver) Origin() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.origin
}

// cachedURL 查询缓存
func (r *Resolver) cachedURL(path string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.urls[path]
	return u, ok
}

// extractOrigin 从对象 URL 提取存储标识(scheme://host)
func extractOrigin(objectURL string) (string, error) {
	u, err := url.Parse(objectURL)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("object url %s has no origin", objectURL)
	}
	return u.Scheme + "://" + u.Host, nil
}
