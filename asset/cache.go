package asset

import (
	"database/sql"
	"sync/atomic"
	"time"

	"github.com/zeebo/xxh3"
	_ "modernc.org/sqlite"

	"github.com/chazu/amalgraph/graph"
	"github.com/chazu/amalgraph/intern"
)

// ContentCache is a durable content-addressed store of encoded node
// trees, keyed by the hash of their canonical CBOR bytes: Put stores a
// tree and Get decodes one back by hash. The entity loaders do not
// consult it. Optional: a nil *ContentCache disables every method.
type ContentCache struct {
	db *sql.DB

	enabled atomic.Bool
	maxAge  time.Duration

	stop    chan struct{}
	stopped chan struct{}
}

// OpenContentCache opens (creating if needed) a cache database at path.
// maxAge bounds how long unused entries survive the background sweep.
func OpenContentCache(path string, maxAge time.Duration) (*ContentCache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS content (
			hash INTEGER PRIMARY KEY,
			data BLOB NOT NULL,
			last_used INTEGER NOT NULL
		)`); err != nil {
		db.Close()
		return nil, err
	}
	c := &ContentCache{
		db:      db,
		maxAge:  maxAge,
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	c.enabled.Store(true)
	go c.sweepLoop()
	return c, nil
}

// sweepLoop periodically evicts entries unused for longer than maxAge.
func (c *ContentCache) sweepLoop() {
	defer close(c.stopped)
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			if !c.enabled.Load() {
				continue
			}
			cutoff := time.Now().Add(-c.maxAge).Unix()
			c.db.Exec(`DELETE FROM content WHERE last_used < ?`, cutoff)
		}
	}
}

// SetEnabled toggles cache participation without closing the database.
func (c *ContentCache) SetEnabled(on bool) {
	if c != nil {
		c.enabled.Store(on)
	}
}

// Close stops the sweeper and closes the database.
func (c *ContentCache) Close() error {
	if c == nil {
		return nil
	}
	close(c.stop)
	<-c.stopped
	return c.db.Close()
}

// Hash returns the content key for a tree: xxh3 over its canonical
// encoding.
func Hash(n *graph.Node, pool *intern.Pool) (uint64, error) {
	data, err := CBORCodec{}.Store(n, pool)
	if err != nil {
		return 0, err
	}
	return xxh3.Hash(data), nil
}

// Put stores a tree under its content hash and returns the hash.
func (c *ContentCache) Put(n *graph.Node, pool *intern.Pool) (uint64, error) {
	data, err := CBORCodec{}.Store(n, pool)
	if err != nil {
		return 0, err
	}
	h := xxh3.Hash(data)
	if c == nil || !c.enabled.Load() {
		return h, nil
	}
	_, err = c.db.Exec(
		`INSERT INTO content (hash, data, last_used) VALUES (?, ?, ?)
		 ON CONFLICT(hash) DO UPDATE SET last_used = excluded.last_used`,
		int64(h), data, time.Now().Unix())
	return h, err
}

// Get decodes the tree stored under hash into m, reporting a miss with
// ok=false.
func (c *ContentCache) Get(hash uint64, m *graph.Manager, pool *intern.Pool) (graph.Ref, bool) {
	if c == nil || !c.enabled.Load() {
		return graph.Null, false
	}
	var data []byte
	err := c.db.QueryRow(`SELECT data FROM content WHERE hash = ?`, int64(hash)).Scan(&data)
	if err != nil {
		return graph.Null, false
	}
	c.db.Exec(`UPDATE content SET last_used = ? WHERE hash = ?`, time.Now().Unix(), int64(hash))
	root, err := CBORCodec{}.Load(data, m, pool)
	if err != nil {
		return graph.Null, false
	}
	return root, true
}
