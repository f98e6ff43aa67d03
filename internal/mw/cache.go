package mw

import (
	"bytes"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

type snapshot struct {
	status int
	header http.Header
	body   []byte
}

// recorder tees the response body so it can be replayed from the cache.
type recorder struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (r *recorder) Write(b []byte) (int, error) {
	r.buf.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *recorder) WriteString(s string) (int, error) {
	r.buf.WriteString(s)
	return r.ResponseWriter.WriteString(s)
}

// ResponseCache keeps successful GET responses keyed by request URI.
type ResponseCache struct {
	entries *cache.Cache
	ttl     time.Duration

	mu          sync.Mutex
	generations map[string]uint64
}

// NewResponseCache creates a cache whose entries live for ttl.
func NewResponseCache(ttl time.Duration) *ResponseCache {
	return &ResponseCache{
		entries:     cache.New(ttl, 2*ttl),
		ttl:         ttl,
		generations: make(map[string]uint64),
	}
}

func (rc *ResponseCache) generation(scope string) uint64 {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.generations[scope]
}

// Invalidate drops every entry whose URI starts with prefix. Reads already in
// flight in the scope named prefix will not store their responses.
func (rc *ResponseCache) Invalidate(prefix string) {
	rc.mu.Lock()
	rc.generations[prefix]++
	rc.mu.Unlock()

	for key := range rc.entries.Items() {
		if strings.HasPrefix(key, prefix) {
			rc.entries.Delete(key)
		}
	}
}

// Len reports the number of live entries.
func (rc *ResponseCache) Len() int {
	return rc.entries.ItemCount()
}

// Scope returns a middleware serving GETs under scope from the cache. Any other
// method that succeeds invalidates the whole scope, so a write is visible to
// the next read of the same resource group.
func (rc *ResponseCache) Scope(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			if status := c.Writer.Status(); status >= 200 && status < 300 {
				rc.Invalidate(scope)
			}
			return
		}

		key := c.Request.URL.RequestURI()
		if v, ok := rc.entries.Get(key); ok {
			snap := v.(snapshot)
			for k, vals := range snap.header {
				c.Writer.Header()[k] = vals
			}
			c.Writer.Header().Set("X-Cache", "HIT")
			c.Writer.WriteHeader(snap.status)
			_, _ = c.Writer.Write(snap.body)
			c.Abort()
			return
		}

		gen := rc.generation(scope)
		rec := &recorder{ResponseWriter: c.Writer}
		c.Writer = rec
		c.Next()

		status := rec.Status()
		if status < 200 || status >= 300 || rc.generation(scope) != gen {
			return
		}
		header := rec.Header().Clone()
		header.Del(RequestIDHeader)
		rc.entries.Set(key, snapshot{status: status, header: header, body: rec.buf.Bytes()}, rc.ttl)
	}
}
