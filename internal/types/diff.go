package types

// TagDiffRecord captures one package's version change between two adjacent
// snapshots of the same lineage. Unchanged packages never produce a record.
type TagDiffRecord struct {
	Path     string     `json:"path"`
	PrevTag  string     `json:"prev_tag,omitempty"`
	NewTag   string     `json:"new_tag,omitempty"`
	Revision int64      `json:"revision,omitempty"`
	Kind     ChangeKind `json:"kind"`
}

// TagDiffFile is the persisted form of one snapshot transition.
type TagDiffFile struct {
	Release ReleaseInfo     `json:"release"`
	Records []TagDiffRecord `json:"diff"`
}
