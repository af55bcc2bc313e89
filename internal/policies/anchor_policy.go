package policies

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	errbuilder "github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"tagmigrate/internal/ports"
)

// ParentAnchor seeds a new branch from an existing branch instead of an
// empty orphan. The reference takes three forms:
//
//	BRANCH:COMMIT      anchor at an explicit commit id
//	BRANCH:@TIMESTAMP  anchor at the newest commit at or before a unix time
//	BRANCH:@FILE       as above, taking the timestamp from a snapshot file
type ParentAnchor struct {
	Branch    string
	Reference string
}

// ParseParentAnchor splits a BRANCH:REF anchor specification.
func ParseParentAnchor(value string) (ParentAnchor, error) {
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
		return ParentAnchor{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("parent anchor %q is not BRANCH:COMMIT or BRANCH:@TIMESTAMP", value))
	}
	return ParentAnchor{
		Branch:    strings.TrimSpace(parts[0]),
		Reference: strings.TrimSpace(parts[1]),
	}, nil
}

// ResolveCommit maps the anchor reference to a concrete commit on the parent
// branch.
func (a ParentAnchor) ResolveCommit(ctx context.Context, dest ports.DestinationPort, store ports.SnapshotStorePort) (string, error) {
	if !strings.HasPrefix(a.Reference, "@") {
		return a.Reference, nil
	}
	spec := strings.TrimPrefix(a.Reference, "@")
	timestamp, err := anchorTimestamp(spec, store)
	if err != nil {
		return "", err
	}
	commit, err := dest.CommitAtTimestamp(ctx, a.Branch, timestamp)
	if err != nil {
		return "", err
	}
	log.Info().
		Str("branch", a.Branch).
		Time("timestamp", timestamp).
		Str("commit", commit).
		Msg("resolved parent anchor")
	return commit, nil
}

func anchorTimestamp(spec string, store ports.SnapshotStorePort) (time.Time, error) {
	if _, err := os.Stat(spec); err == nil {
		snapshot, err := store.LoadSnapshot(spec)
		if err != nil {
			return time.Time{}, err
		}
		log.Info().
			Str("file", spec).
			Str("release", snapshot.Release.Name).
			Msg("taking anchor timestamp from snapshot file")
		return snapshot.Release.BuildTime(), nil
	}
	unix, err := strconv.ParseInt(spec, 10, 64)
	if err != nil {
		return time.Time{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("anchor reference @%s is neither a snapshot file nor a unix timestamp", spec)).
			WithCause(err)
	}
	return time.Unix(unix, 0).UTC(), nil
}
