package qrimage

import (
	"context"
	"image"
	"strconv"
	"sync"
	"time"
)

// CachedLoader remembers loaded logos, and load failures, for TTL so a
// batch of seats fetches each logo once.  The zero value with Next set is
// ready to use.
type CachedLoader struct {
	Next BrandingLoader
	TTL  time.Duration

	mu      sync.Mutex
	entries map[string]cachedLogo
	now     func() time.Time
}

type cachedLogo struct {
	img     image.Image
	err     error
	expires time.Time
}

func NewCachedLoader(next BrandingLoader, ttl time.Duration) *CachedLoader {
	return &CachedLoader{Next: next, TTL: ttl, entries: make(map[string]cachedLogo), now: time.Now}
}

func (l *CachedLoader) Load(ctx context.Context, url string, diameter int) (image.Image, error) {
	key := strconv.Itoa(diameter) + "|" + url
	now := l.clock()

	l.mu.Lock()
	if e, ok := l.entries[key]; ok && now.Before(e.expires) {
		l.mu.Unlock()
		return e.img, e.err
	}
	l.mu.Unlock()

	img, err := l.Next.Load(ctx, url, diameter)
	if ctx.Err() != nil {
		// a cancelled request says nothing about the logo
		return img, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for k, e := range l.entries {
		if !now.Before(e.expires) {
			delete(l.entries, k)
		}
	}
	if l.entries == nil {
		l.entries = make(map[string]cachedLogo)
	}
	l.entries[key] = cachedLogo{img: img, err: err, expires: now.Add(l.TTL)}
	return img, err
}

func (l *CachedLoader) clock() time.Time {
	if l.now == nil {
		return time.Now()
	}
	return l.now()
}
