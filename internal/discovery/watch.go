package discovery

import (
	"context"
	"time"
)

// DeltaKind distinguishes an added pod record from a removed one.
type DeltaKind int

const (
	Added DeltaKind = iota
	Removed
)

// Delta is one change `Watch` observed between two scans.
type Delta struct {
	Kind   DeltaKind
	Record PodRecord
}

// Watch re-scans dir every interval and emits Added/Removed deltas against
// the previous scan, closing the returned channel when ctx is done. This
// is the supplemented long-lived form of the one-shot List scan (`pod
// list --watch`).
func Watch(ctx context.Context, dir string, interval time.Duration) <-chan Delta {
	out := make(chan Delta)
	go func() {
		defer close(out)
		seen := map[string]PodRecord{}
		emit := func() {
			records, err := List(dir)
			if err != nil {
				return
			}
			current := make(map[string]PodRecord, len(records))
			for _, r := range records {
				current[r.UUID] = r
				if _, ok := seen[r.UUID]; !ok {
					select {
					case out <- Delta{Kind: Added, Record: r}:
					case <-ctx.Done():
						return
					}
				}
			}
			for uuid, r := range seen {
				if _, ok := current[uuid]; !ok {
					select {
					case out <- Delta{Kind: Removed, Record: r}:
					case <-ctx.Done():
						return
					}
				}
			}
			seen = current
		}

		emit()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				emit()
			}
		}
	}()
	return out
}
