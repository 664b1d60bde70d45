package repo

// TreeCache maps a branch head commit SHA to the flat list of tracked file
// paths. An entry is valid only while the stored SHA matches the branch's
// current head; every commit to the working branch must be followed by
// Invalidate.
type TreeCache struct {
	sha   string
	paths []string
}

// Get returns the cached paths if the cache was populated for sha.
func (c *TreeCache) Get(sha string) ([]string, bool) {
	if c.sha == "" || c.sha != sha {
		return nil, false
	}
	return c.paths, true
}

// Put stores the path list for sha, replacing any prior entry.
func (c *TreeCache) Put(sha string, paths []string) {
	c.sha = sha
	c.paths = paths
}

// Invalidate drops the cached entry.
func (c *TreeCache) Invalidate() {
	c.sha = ""
	c.paths = nil
}
