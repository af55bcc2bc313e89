package types

// MetadataCache caches source revision records keyed by package path and tag
// label. It is persisted between runs so rescans only query the source for
// tags not seen before.
type MetadataCache map[string]map[string]RevisionMeta

func (c MetadataCache) Get(pkgPath string, tag string) (RevisionMeta, bool) {
	tags, ok := c[pkgPath]
	if !ok {
		return RevisionMeta{}, false
	}
	meta, ok := tags[tag]
	return meta, ok
}

func (c MetadataCache) Put(pkgPath string, tag string, meta RevisionMeta) {
	tags, ok := c[pkgPath]
	if !ok {
		tags = map[string]RevisionMeta{}
		c[pkgPath] = tags
	}
	tags[tag] = meta
}

func (c MetadataCache) Has(pkgPath string, tag string) bool {
	_, ok := c.Get(pkgPath, tag)
	return ok
}
