package region

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultCacheSize = 256

// Cache keeps recently assembled regions. Each Loader owner creates its own.
type Cache struct {
	lru *lru.Cache[Coord, *Region]
}

func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[Coord, *Region](size)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: c}, nil
}

func (c *Cache) Get(k Coord) (*Region, bool) {
	if c == nil {
		return nil, false
	}
	return c.lru.Get(k)
}

func (c *Cache) Add(r *Region) {
	if c == nil || r == nil {
		return
	}
	c.lru.Add(r.Coord(), r)
}

func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}

func (c *Cache) Purge() {
	if c == nil {
		return
	}
	c.lru.Purge()
}
