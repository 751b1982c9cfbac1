package utils

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/patrickmn/go-cache"
)

// NewMemoryCache 进程内 KV 缓存
func NewMemoryCache(defaultTTL, cleanupInterval time.Duration) *cache.Cache {
	return cache.New(defaultTTL, cleanupInterval)
}

// CacheItem 包装实际的数据，增加过期时间
type CacheItem[T any] struct {
	Value     T
	ExpiredAt time.Time
}

// TTLCache 带过期时间的 LRU 缓存
type TTLCache[T any] struct {
	storage *lru.Cache[string, CacheItem[T]]
	ttl     time.Duration
	now     func() time.Time
}

// NewTTLCache size 是最大缓存条数，ttl 是数据有效期
func NewTTLCache[T any](size int, ttl time.Duration) *TTLCache[T] {
	// lru.New 是线程安全的，size <= 0 时才会报错
	if size <= 0 {
		size = 1
	}
	c, _ := lru.New[string, CacheItem[T]](size)
	return &TTLCache[T]{
		storage: c,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Set 新增或覆盖
func (c *TTLCache[T]) Set(key string, value T) {
	c.storage.Add(key, CacheItem[T]{
		Value:     value,
		ExpiredAt: c.now().Add(c.ttl),
	})
}

// Get 过期的条目视为不存在并删除
func (c *TTLCache[T]) Get(key string) (T, bool) {
	var zero T
	item, ok := c.storage.Get(key)
	if !ok {
		return zero, false
	}
	if c.now().After(item.ExpiredAt) {
		c.storage.Remove(key)
		return zero, false
	}
	return item.Value, true
}

func (c *TTLCache[T]) Delete(key string) {
	c.storage.Remove(key)
}

func (c *TTLCache[T]) Clear() {
	c.storage.Purge()
}

func (c *TTLCache[T]) Len() int {
	return c.storage.Len()
}
