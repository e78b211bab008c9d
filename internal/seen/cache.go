// Package seen remembers recently handled relay frames so a node that
// receives the same relay over two paths only processes it once.
//
// Frames are identified by their SHA-256 digest. Each entry keeps the peer
// the frame first came from and the reply frames sent back to it, so a retry
// from that same peer can be answered again without handling it twice.
// Entries expire after a fixed window; a relay arriving again after that is
// treated as new.
package seen

import (
	"crypto/sha256"
	"sync"
	"time"
)

const DefaultExpiry = 60 * time.Second

// Digest identifies a frame.
type Digest [sha256.Size]byte

// Sum returns the digest of frame.
func Sum(frame []byte) Digest {
	return sha256.Sum256(frame)
}

// Entry is what the cache holds for one digest.
type Entry struct {
	From    string
	Replies [][]byte
}

type entry struct {
	Entry
	expires time.Time
}

// Cache is a concurrent-safe set of digests with expiry.
type Cache struct {
	mu      sync.Mutex
	entries map[Digest]*entry
	expiry  time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New creates a Cache and starts its reaper. Call Close to stop it.
func New(expiry time.Duration) *Cache {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	c := &Cache{
		entries: make(map[Digest]*entry),
		expiry:  expiry,
		stopCh:  make(chan struct{}),
	}
	go c.reap()
	return c
}

// Has reports whether d was added and has not expired.
func (c *Cache) Has(d Digest) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.live(d, time.Now())
	return ok
}

// Add records d and reports whether it was new.
func (c *Cache) Add(d Digest) bool {
	_, fresh := c.Claim(d, "")
	return fresh
}

// Claim records d as first seen from peer from. If d is already live it
// returns a copy of the existing entry and false.
func (c *Cache) Claim(d Digest, from string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	if e, ok := c.live(d, now); ok {
		return Entry{From: e.From, Replies: append([][]byte(nil), e.Replies...)}, false
	}
	c.entries[d] = &entry{Entry: Entry{From: from}, expires: now.Add(c.expiry)}
	return Entry{From: from}, true
}

// SetReplies stores the reply frames sent for d. It is a no-op if d is not
// live.
func (c *Cache) SetReplies(d Digest, replies [][]byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.live(d, time.Now()); ok {
		e.Replies = replies
	}
}

// live returns the unexpired entry for d. c.mu must be held.
func (c *Cache) live(d Digest, now time.Time) (*entry, bool) {
	e, ok := c.entries[d]
	if !ok {
		return nil, false
	}
	if now.After(e.expires) {
		delete(c.entries, d)
		return nil, false
	}
	return e, true
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

func (c *Cache) reap() {
	ticker := time.NewTicker(c.expiry / 2)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case now := <-ticker.C:
			c.mu.Lock()
			for d, e := range c.entries {
				if now.After(e.expires) {
					delete(c.entries, d)
				}
			}
			c.mu.Unlock()
		}
	}
}
