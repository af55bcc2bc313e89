package core

import (
	"fmt"
	"strings"

	errbuilder "github.com/ZanzyTHEbar/errbuilder-go"
	debversion "github.com/knqyf263/go-deb-version"

	"tagmigrate/internal/types"
)

// tagOrdinalCache memoizes parsed tag ordinals. Package tags follow the
// Name-XX-YY-ZZ convention; the dashed numeric part is compared with Debian
// version semantics so numeric runs sort numerically, not lexically.
type tagOrdinalCache struct {
	parsed map[string]debversion.Version
}

func newTagOrdinalCache() *tagOrdinalCache {
	return &tagOrdinalCache{parsed: map[string]debversion.Version{}}
}

func (c *tagOrdinalCache) ordinal(tag string) (debversion.Version, error) {
	if parsed, ok := c.parsed[tag]; ok {
		return parsed, nil
	}
	_, ordinal, err := splitTagLabel(tag)
	if err != nil {
		return debversion.Version{}, err
	}
	parsed, err := debversion.NewVersion(ordinal)
	if err != nil {
		return debversion.Version{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("tag %s has no comparable ordinal", tag)).
			WithCause(err)
	}
	c.parsed[tag] = parsed
	return parsed, nil
}

// compareTags orders two tag labels of the same package. Comparing tags of
// different packages is meaningless and is an error.
func (c *tagOrdinalCache) compareTags(a string, b string) (int, error) {
	nameA, _, err := splitTagLabel(a)
	if err != nil {
		return 0, err
	}
	nameB, _, err := splitTagLabel(b)
	if err != nil {
		return 0, err
	}
	if nameA != nameB {
		return 0, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("tag comparison across packages: %s vs %s", a, b))
	}
	versionA, err := c.ordinal(a)
	if err != nil {
		return 0, err
	}
	versionB, err := c.ordinal(b)
	if err != nil {
		return 0, err
	}
	return versionA.Compare(versionB), nil
}

func splitTagLabel(tag string) (name string, ordinal string, err error) {
	elements := strings.Split(tag, "-")
	if len(elements) < 2 {
		return "", "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("tag %s has no version elements", tag))
	}
	return elements[0], strings.Join(elements[1:], "."), nil
}

// IsBranchTag reports whether a tag was cut on a source branch rather than
// the main line (branch tags carry a fourth version element).
func IsBranchTag(tag string) bool {
	return len(strings.Split(tag, "-")) > 4
}

// trunkSegmentRevision extracts the revision from a trunk marker segment
// (trunk-r1234). Reports false for non-trunk segments.
func trunkSegmentRevision(segment string) (int64, bool) {
	if !strings.HasPrefix(segment, types.TrunkTag+"-r") {
		return 0, false
	}
	var revision int64
	if _, err := fmt.Sscanf(segment, types.TrunkTag+"-r%d", &revision); err != nil {
		return 0, false
	}
	return revision, true
}
