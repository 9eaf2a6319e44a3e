package snapshot

import (
	"fmt"
	"slices"
	"strings"

	"ronin-go/internal/ronin"
)

// Move is an entry whose identity was found at a new path.
type Move struct {
	From string
	To   string
	// Modified is set when the moved entry's content signal (mtime, size or
	// type) also changed.
	Modified bool
}

// Diff is the classified difference between two snapshots. Each path
// appears in at most one of Created, Deleted and Modified. An identity that
// moved is reported only in Moved, but a move onto an existing path also
// deletes the object it replaced. All lists are sorted.
type Diff struct {
	Created  []string
	Deleted  []string
	Modified []string
	Moved    []Move
}

// Compare classifies the changes from prev to cur. A nil snapshot compares
// as an empty tree.
//
// Entries are matched by identity first: an identity at the same path is
// modified if its mtime, size or type changed, and at a different path it
// is a move. Hard links are matched path by path, so removing one link is
// a deletion, not a move. Remaining paths present in both snapshots hold a
// different object than before (an atomic replace) and are modified.
// Whatever is left is created or deleted.
func Compare(prev, cur *Snapshot) *Diff {
	if prev == nil {
		prev = &Snapshot{}
	}
	if cur == nil {
		cur = &Snapshot{}
	}

	d := &Diff{}
	prevUsed := make(map[string]bool, len(prev.entries))
	curUsed := make(map[string]bool, len(cur.entries))

	for id, before := range prev.byID {
		after, ok := cur.byID[id]
		if !ok {
			continue
		}

		var fromRest, toRest []string
		for _, p := range before {
			if slices.Contains(after, p) {
				prevUsed[p] = true
				curUsed[p] = true
				if changed(prev.entries[p], cur.entries[p]) {
					d.Modified = append(d.Modified, p)
				}
				continue
			}
			fromRest = append(fromRest, p)
		}
		for _, p := range after {
			if !slices.Contains(before, p) {
				toRest = append(toRest, p)
			}
		}

		n := min(len(fromRest), len(toRest))
		for i := range n {
			from, to := fromRest[i], toRest[i]
			prevUsed[from] = true
			curUsed[to] = true
			d.Moved = append(d.Moved, Move{
				From:     from,
				To:       to,
				Modified: changed(prev.entries[from], cur.entries[to]),
			})
		}
	}

	for p, after := range cur.entries {
		if curUsed[p] {
			continue
		}
		if before, ok := prev.entries[p]; ok && !prevUsed[p] {
			prevUsed[p] = true
			if before.ID != after.ID || changed(before, after) {
				d.Modified = append(d.Modified, p)
			}
			continue
		}
		d.Created = append(d.Created, p)
	}

	for p := range prev.entries {
		if !prevUsed[p] {
			d.Deleted = append(d.Deleted, p)
		}
	}

	slices.Sort(d.Created)
	slices.Sort(d.Deleted)
	slices.Sort(d.Modified)
	slices.SortFunc(d.Moved, func(a, b Move) int {
		if c := strings.Compare(a.From, b.From); c != 0 {
			return c
		}
		return strings.Compare(a.To, b.To)
	})
	return d
}

func changed(a, b *Entry) bool {
	return a.IsDir != b.IsDir ||
		a.Mode.Type() != b.Mode.Type() ||
		a.Size != b.Size ||
		!a.ModTime.Equal(b.ModTime)
}

// Empty reports whether nothing changed.
func (d *Diff) Empty() bool {
	return len(d.Created) == 0 && len(d.Deleted) == 0 &&
		len(d.Modified) == 0 && len(d.Moved) == 0
}

// Summary returns the per-class counts.
func (d *Diff) Summary() ronin.ChangeSummary {
	return ronin.ChangeSummary{
		Created:  len(d.Created),
		Deleted:  len(d.Deleted),
		Modified: len(d.Modified),
		Moved:    len(d.Moved),
	}
}

// Paths returns every path the diff touches, both ends of moves included,
// sorted and without duplicates.
func (d *Diff) Paths() []string {
	out := make([]string, 0, len(d.Created)+len(d.Deleted)+len(d.Modified)+2*len(d.Moved))
	out = append(out, d.Created...)
	out = append(out, d.Deleted...)
	out = append(out, d.Modified...)
	for _, m := range d.Moved {
		out = append(out, m.From, m.To)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func (d *Diff) String() string {
	s := d.Summary()
	return fmt.Sprintf("created=%d deleted=%d modified=%d moved=%d",
		s.Created, s.Deleted, s.Modified, s.Moved)
}
