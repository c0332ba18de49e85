package vtb

import "github.com/go-rod/rod"

// Row is a transient view of one rendered list entry at snapshot time.
// Text is the normalized visible text (a weak identity key: distinct
// transactions may render identically), Top is the absolute vertical
// offset used to re-acquire the row after virtualization unmounts it,
// Handle is a live element reference valid only until the next DOM
// mutation.
type Row struct {
	Text   string
	Top    float64
	Handle *rod.Element
}

// Entry is the durable record of a row ever observed during one run.
// Entries are appended, never removed; indices are stable for the run.
type Entry struct {
	Text   string
	Seen   bool
	Top    float64
	Handle *rod.Element

	// Fails counts extraction failures. A failed row stays unseen and is
	// retried on later passes until its budget runs out, so one broken
	// row cannot starve the rest of the list.
	Fails int

	// checked marks the entry as matched during the current reconcile
	// pass, preventing two snapshot rows with identical text from
	// collapsing onto one entry.
	checked bool
}

// maxRowFails is the per-row extraction retry budget within one run.
const maxRowFails = 3

// Registry tracks row identities across successive, possibly virtualized,
// DOM snapshots. Neither index nor node identity is stable across time in
// the portal's list: text is the only consistently available approximate
// key, and position is used purely for re-acquisition, never as identity.
// The registry is owned by one collection run and is not persisted.
type Registry struct {
	entries []*Entry
}

// Len returns the number of entries ever observed.
func (r *Registry) Len() int { return len(r.entries) }

// Entries exposes the backing slice for positional fallback lookups.
func (r *Registry) Entries() []*Entry { return r.entries }

// Reconcile pairs a fresh snapshot against the registry. Each snapshot row
// greedily matches the first unchecked entry with the same text; matched
// entries get their position and handle refreshed. Unmatched rows become
// new unseen entries, appended in snapshot order. Feeding the same
// snapshot twice creates no duplicates and flips no seen flags.
func (r *Registry) Reconcile(snapshot []Row) {
	for _, e := range r.entries {
		e.checked = false
	}
	for i := range snapshot {
		row := &snapshot[i]
		if e := r.firstUnchecked(row.Text); e != nil {
			e.checked = true
			e.Top = row.Top
			e.Handle = row.Handle
			continue
		}
		r.entries = append(r.entries, &Entry{
			Text:    row.Text,
			Top:     row.Top,
			Handle:  row.Handle,
			checked: true,
		})
	}
}

func (r *Registry) firstUnchecked(text string) *Entry {
	for _, e := range r.entries {
		if !e.checked && e.Text == text {
			return e
		}
	}
	return nil
}

// NextTarget returns the first entry, in discovery order, that has not
// been extracted yet and is present in the current snapshot by text
// lookup, along with its registry index. Returns (nil, -1) when no entry
// qualifies.
func (r *Registry) NextTarget(snapshot []Row) (*Entry, int) {
	present := make(map[string]struct{}, len(snapshot))
	for i := range snapshot {
		present[snapshot[i].Text] = struct{}{}
	}
	for i, e := range r.entries {
		if e.Seen || e.Fails >= maxRowFails {
			continue
		}
		if _, ok := present[e.Text]; ok {
			return e, i
		}
	}
	return nil, -1
}

// TextRank returns how many entries before idx share the same text as the
// entry at idx. The rod driver uses it to pick the n-th same-text match
// when re-querying by substring.
func (r *Registry) TextRank(idx int) int {
	rank := 0
	for i := 0; i < idx && i < len(r.entries); i++ {
		if r.entries[i].Text == r.entries[idx].Text {
			rank++
		}
	}
	return rank
}
