package vtb

import "testing"

func rows(texts ...string) []Row {
	out := make([]Row, len(texts))
	for i, t := range texts {
		out[i] = Row{Text: t, Top: float64(i) * 80}
	}
	return out
}

func TestReconcile_Idempotent(t *testing.T) {
	// WHAT: feeding the same snapshot twice creates no duplicate entries
	// and flips no seen flags.
	// WHY: the loop re-snapshots constantly; a non-idempotent reconcile
	// would balloon the registry and re-visit rows.
	var reg Registry
	snap := rows("a", "b", "c")

	reg.Reconcile(snap)
	reg.Reconcile(snap)

	if reg.Len() != 3 {
		t.Fatalf("registry has %d entries, want 3", reg.Len())
	}
	for _, e := range reg.Entries() {
		if e.Seen {
			t.Errorf("entry %q marked seen by reconcile alone", e.Text)
		}
	}
}

func TestReconcile_DuplicateTextsStayDistinct(t *testing.T) {
	var reg Registry
	reg.Reconcile(rows("Пятёрочка", "Пятёрочка"))

	if reg.Len() != 2 {
		t.Fatalf("registry has %d entries, want 2 for two same-text rows", reg.Len())
	}
}

func TestReconcile_RefreshesPositionAndHandle(t *testing.T) {
	var reg Registry
	reg.Reconcile(rows("a", "b"))

	moved := []Row{{Text: "a", Top: 400}, {Text: "b", Top: 480}}
	reg.Reconcile(moved)

	if got := reg.Entries()[0].Top; got != 400 {
		t.Errorf("entry a Top = %v, want refreshed 400", got)
	}
}

func TestReconcile_AppendsNewRowsInSnapshotOrder(t *testing.T) {
	var reg Registry
	reg.Reconcile(rows("a", "b"))
	reg.Reconcile(rows("a", "b", "c", "d"))

	want := []string{"a", "b", "c", "d"}
	if reg.Len() != len(want) {
		t.Fatalf("registry has %d entries, want %d", reg.Len(), len(want))
	}
	for i, e := range reg.Entries() {
		if e.Text != want[i] {
			t.Errorf("entry %d = %q, want %q", i, e.Text, want[i])
		}
	}
}

func TestNextTarget_DiscoveryOrderAndPresence(t *testing.T) {
	var reg Registry
	reg.Reconcile(rows("a", "b", "c"))
	reg.Entries()[0].Seen = true

	// "b" scrolled out of the rendered window: only "a" and "c" visible.
	target, idx := reg.NextTarget(rows("a", "c"))
	if target == nil || target.Text != "c" || idx != 2 {
		t.Fatalf("target = %v idx=%d, want c at 2", target, idx)
	}
}

func TestNextTarget_NoneWhenAllSeen(t *testing.T) {
	var reg Registry
	snap := rows("a", "b")
	reg.Reconcile(snap)
	for _, e := range reg.Entries() {
		e.Seen = true
	}
	if target, _ := reg.NextTarget(snap); target != nil {
		t.Errorf("target = %q, want none", target.Text)
	}
}

func TestNextTarget_SkipsExhaustedRows(t *testing.T) {
	var reg Registry
	snap := rows("a", "b")
	reg.Reconcile(snap)
	reg.Entries()[0].Fails = maxRowFails

	target, idx := reg.NextTarget(snap)
	if target == nil || target.Text != "b" || idx != 1 {
		t.Fatalf("target = %v idx=%d, want b at 1", target, idx)
	}
}

func TestTextRank(t *testing.T) {
	var reg Registry
	reg.Reconcile(rows("x", "y", "x", "x"))

	if got := reg.TextRank(0); got != 0 {
		t.Errorf("rank of first x = %d, want 0", got)
	}
	if got := reg.TextRank(2); got != 1 {
		t.Errorf("rank of second x = %d, want 1", got)
	}
	if got := reg.TextRank(3); got != 2 {
		t.Errorf("rank of third x = %d, want 2", got)
	}
}
