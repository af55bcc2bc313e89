package policies

import (
	"strings"
	"time"

	pep440 "github.com/aquasecurity/go-pep440-version"
	"github.com/rs/zerolog/log"

	"tagmigrate/internal/types"
)

// DroppedSnapshot reports a snapshot vetoed by the forward-only policy.
type DroppedSnapshot struct {
	Release string
	Reason  string
}

// FilterBackskips enforces the forward-only ordering contract on a snapshot
// list: after sorting by build timestamp, any snapshot that would move the
// branch backwards against a later release series is vetoed. The scan runs
// newest-to-oldest so overlapping older series lose to the series that
// superseded them.
func FilterBackskips(snapshots []types.ReleaseSnapshot) ([]types.ReleaseSnapshot, []DroppedSnapshot) {
	var kept []types.ReleaseSnapshot
	var dropped []DroppedSnapshot
	lastTimestamp := int64(0)
	lastRelease := ""
	veto := map[int]bool{}
	for i := len(snapshots) - 1; i >= 0; i-- {
		release := snapshots[i].Release
		if lastTimestamp != 0 && release.Timestamp > lastTimestamp {
			log.Info().
				Str("release", release.Name).
				Str("superseded_by", lastRelease).
				Msg("vetoing release: would move branch backwards in time")
			veto[i] = true
			dropped = append(dropped, DroppedSnapshot{
				Release: release.Name,
				Reason:  "build time is newer than already-accepted release " + lastRelease,
			})
			continue
		}
		if lastTimestamp != 0 && CompareReleaseOrdinals(release.Name, lastRelease) > 0 {
			log.Info().
				Str("release", release.Name).
				Str("superseded_by", lastRelease).
				Msg("vetoing release: ordinal would regress on branch")
			veto[i] = true
			dropped = append(dropped, DroppedSnapshot{
				Release: release.Name,
				Reason:  "release ordinal is higher than already-accepted release " + lastRelease,
			})
			continue
		}
		lastTimestamp = release.Timestamp
		lastRelease = release.Name
	}
	for i, snapshot := range snapshots {
		if !veto[i] {
			kept = append(kept, snapshot)
		}
	}
	return kept, dropped
}

// ForwardBaseline is the newest point a branch has already reached, derived
// from its existing release markers. Under only-forward, snapshots at or
// behind the baseline are vetoed even when the input list itself is ordered.
type ForwardBaseline struct {
	Release   string
	BuildTime time.Time
}

// BaselineFromMarkers derives the forward baseline from marker refs: the
// highest release/ ordinal in the repository and the newest nightly stamp
// recorded for the branch.
func BaselineFromMarkers(branch string, markers []types.MarkerRef) ForwardBaseline {
	baseline := ForwardBaseline{}
	nightlyPrefix := "nightly/" + branch + "/"
	for _, marker := range markers {
		if strings.HasPrefix(marker.Name, "release/") {
			name := strings.TrimPrefix(marker.Name, "release/")
			if _, err := pep440.Parse(name); err != nil {
				continue
			}
			if baseline.Release == "" || CompareReleaseOrdinals(name, baseline.Release) > 0 {
				baseline.Release = name
			}
			continue
		}
		if strings.HasPrefix(marker.Name, nightlyPrefix) {
			stamp := strings.TrimPrefix(marker.Name, nightlyPrefix)
			when, err := time.Parse(types.NightlyStampLayout, stamp)
			if err != nil {
				continue
			}
			if when.After(baseline.BuildTime) {
				baseline.BuildTime = when
			}
		}
	}
	return baseline
}

// Blocks reports whether applying the release would take the branch back
// behind the baseline, with the reason.
func (b ForwardBaseline) Blocks(release types.ReleaseInfo) (string, bool) {
	if b.Release != "" && releaseOrdinalAtOrBehind(release.Name, b.Release) {
		return "release ordinal is not ahead of already-marked release " + b.Release, true
	}
	if !b.BuildTime.IsZero() && !release.BuildTime().After(b.BuildTime) {
		return "build time is not ahead of the newest marked build", true
	}
	return "", false
}

// Advance folds a release the run just applied into the baseline. Numbered
// releases move the ordinal; nightlies move the build-time watermark.
func (b *ForwardBaseline) Advance(release types.ReleaseInfo) {
	if release.Nightly {
		if when := release.BuildTime(); when.After(b.BuildTime) {
			b.BuildTime = when
		}
		return
	}
	if _, err := pep440.Parse(release.Name); err != nil {
		return
	}
	if b.Release == "" || CompareReleaseOrdinals(release.Name, b.Release) > 0 {
		b.Release = release.Name
	}
}

// releaseOrdinalAtOrBehind compares strictly: both names must parse as
// release ordinals, so nightly builds never trip the ordinal veto.
func releaseOrdinalAtOrBehind(name string, baseline string) bool {
	incoming, err := pep440.Parse(name)
	if err != nil {
		return false
	}
	marked, err := pep440.Parse(baseline)
	if err != nil {
		return false
	}
	return incoming.Compare(marked) <= 0
}

// CompareReleaseOrdinals orders dotted numbered-release names (A.B.X[.Y]).
// Names that do not parse as release ordinals compare equal, so nightly
// builds never trip the ordinal veto.
func CompareReleaseOrdinals(a string, b string) int {
	versionA, err := pep440.Parse(a)
	if err != nil {
		return 0
	}
	versionB, err := pep440.Parse(b)
	if err != nil {
		return 0
	}
	return versionA.Compare(versionB)
}
