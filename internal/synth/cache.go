package synth

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// resultCache memoizes full-mode synthesis keyed by the request parameters.
// Streaming synthesis is never cached; buffering it would defeat
// time-to-first-byte.
type resultCache struct {
	lru *lru.Cache[string, Result]
}

func newResultCache(size int) (*resultCache, error) {
	cache, err := lru.New[string, Result](size)
	if err != nil {
		return nil, err
	}
	return &resultCache{lru: cache}, nil
}

func cacheKey(req Request) string {
	voice := ""
	if req.VoiceID != nil {
		voice = req.VoiceID.String()
	}
	return fmt.Sprintf("%s|%s|%.3f|%s", voice, req.Language, req.Speed, req.Text)
}

func (c *resultCache) get(req Request) (Result, bool) {
	return c.lru.Get(cacheKey(req))
}

func (c *resultCache) put(req Request, result Result) {
	c.lru.Add(cacheKey(req), result)
}
