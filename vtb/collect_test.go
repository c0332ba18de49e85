package vtb

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/tsunade/collector/bank"
)

// fakeList scripts a virtualized list for the collect loop: an initial
// page of rows plus further pages revealed by RevealMore. Extraction can
// be forced to fail per row text.
type fakeList struct {
	pages   [][]string
	cur     int
	failing map[string]bool
	session bool

	extractCalls map[string]int
}

func newFakeList(pages ...[]string) *fakeList {
	return &fakeList{
		pages:        pages,
		failing:      map[string]bool{},
		extractCalls: map[string]int{},
	}
}

func (f *fakeList) visible() []string {
	var out []string
	for i := 0; i <= f.cur && i < len(f.pages); i++ {
		out = append(out, f.pages[i]...)
	}
	return out
}

func (f *fakeList) Snapshot(ctx context.Context) ([]Row, error) {
	texts := f.visible()
	out := make([]Row, len(texts))
	for i, t := range texts {
		out[i] = Row{Text: t, Top: float64(i) * 80}
	}
	return out, nil
}

func (f *fakeList) RevealMore(ctx context.Context) (int, error) {
	if f.cur < len(f.pages)-1 {
		f.cur++
	}
	return len(f.visible()), nil
}

func (f *fakeList) Extract(ctx context.Context, reg *Registry, idx int) (*bank.Operation, error) {
	text := reg.Entries()[idx].Text
	f.extractCalls[text]++
	if f.failing[text] {
		return nil, errors.New("detail header did not appear")
	}
	return &bank.Operation{
		Text:   text,
		Amount: decimal.NewFromInt(-100),
	}, nil
}

func (f *fakeList) SessionFailed(ctx context.Context) bool { return f.session }

func quietConfig() *Config {
	cfg := &Config{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	cfg.defaults()
	cfg.PauseMin = 1
	cfg.PauseMax = 2
	return cfg
}

func collectAll(t *testing.T, drv ListDriver, cfg *Config) ([]bank.Operation, int) {
	t.Helper()
	var got []bank.Operation
	calls := 0
	err := collect(context.Background(), drv, cfg, func(ctx context.Context, batch []bank.Operation) (bank.Signal, error) {
		calls++
		got = append(got, batch...)
		return bank.Continue, nil
	})
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	return got, calls
}

func TestCollect_VisitsEveryRowOnce(t *testing.T) {
	drv := newFakeList([]string{"a", "b", "c"})
	got, _ := collectAll(t, drv, quietConfig())

	if len(got) != 3 {
		t.Fatalf("collected %d operations, want 3", len(got))
	}
	for text, n := range drv.extractCalls {
		if n != 1 {
			t.Errorf("row %q extracted %d times, want 1", text, n)
		}
	}
	for i := range got {
		if got[i].Hash == "" {
			t.Errorf("operation %q has no content hash", got[i].Text)
		}
	}
}

func TestCollect_GrowingListNoDuplicateVisits(t *testing.T) {
	// WHAT: as reveal-more mounts new pages, previously visited rows are
	// never extracted again.
	// WHY: the list recycles DOM nodes; only the registry's seen flag
	// prevents re-visiting.
	drv := newFakeList(
		[]string{"a", "b"},
		[]string{"a", "b", "c", "d"},
		[]string{"a", "b", "c", "d", "e"},
	)
	// Later pages replace earlier ones wholesale, like a re-render.
	drv.pages = [][]string{drv.pages[0], {"c", "d"}, {"e"}}

	got, _ := collectAll(t, drv, quietConfig())
	if len(got) != 5 {
		t.Fatalf("collected %d operations, want 5", len(got))
	}
	for text, n := range drv.extractCalls {
		if n != 1 {
			t.Errorf("row %q extracted %d times, want 1", text, n)
		}
	}
}

func TestCollect_DuplicateTextsBothVisited(t *testing.T) {
	drv := newFakeList([]string{"Пятёрочка", "Пятёрочка"})
	got, _ := collectAll(t, drv, quietConfig())
	if len(got) != 2 {
		t.Fatalf("collected %d operations, want 2 for two same-text rows", len(got))
	}
}

func TestCollect_FailingRowLeftUnseen(t *testing.T) {
	// One row out of three never renders its detail header: the run still
	// yields the other two, and the broken row was retried before being
	// set aside.
	drv := newFakeList([]string{"a", "b", "c"})
	drv.failing["b"] = true

	got, _ := collectAll(t, drv, quietConfig())
	if len(got) != 2 {
		t.Fatalf("collected %d operations, want 2", len(got))
	}
	for _, op := range got {
		if op.Text == "b" {
			t.Error("failing row must not produce a record")
		}
	}
	if drv.extractCalls["b"] != maxRowFails {
		t.Errorf("failing row retried %d times, want %d", drv.extractCalls["b"], maxRowFails)
	}
}

func TestCollect_BatchesOfTen(t *testing.T) {
	var texts []string
	for r := 'a'; r < 'a'+23; r++ {
		texts = append(texts, string(r))
	}
	drv := newFakeList(texts)

	var sizes []int
	err := collect(context.Background(), drv, quietConfig(), func(ctx context.Context, batch []bank.Operation) (bank.Signal, error) {
		sizes = append(sizes, len(batch))
		return bank.Continue, nil
	})
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	want := []int{10, 10, 3}
	if len(sizes) != len(want) {
		t.Fatalf("sink called %d times (%v), want %v", len(sizes), sizes, want)
	}
	for i := range want {
		if sizes[i] != want[i] {
			t.Errorf("batch %d size = %d, want %d", i, sizes[i], want[i])
		}
	}
}

func TestCollect_StopSignalHaltsCleanly(t *testing.T) {
	var texts []string
	for r := 'a'; r < 'a'+25; r++ {
		texts = append(texts, string(r))
	}
	drv := newFakeList(texts)

	calls := 0
	err := collect(context.Background(), drv, quietConfig(), func(ctx context.Context, batch []bank.Operation) (bank.Signal, error) {
		calls++
		return bank.StopRequested, nil
	})
	if err != nil {
		t.Fatalf("stop must not be an error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("sink called %d times after stop, want 1", calls)
	}
}

func TestCollect_SinkErrorPropagates(t *testing.T) {
	var texts []string
	for r := 'a'; r < 'a'+12; r++ {
		texts = append(texts, string(r))
	}
	drv := newFakeList(texts)

	boom := errors.New("insert failed")
	err := collect(context.Background(), drv, quietConfig(), func(ctx context.Context, batch []bank.Operation) (bank.Signal, error) {
		return bank.Continue, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want sink error", err)
	}
}

func TestCollect_SessionFailureAborts(t *testing.T) {
	drv := newFakeList([]string{"a", "b"})
	drv.session = true

	err := collect(context.Background(), drv, quietConfig(), func(ctx context.Context, batch []bank.Operation) (bank.Signal, error) {
		t.Fatal("sink must not be called after a session failure")
		return bank.Continue, nil
	})
	if !errors.Is(err, ErrSessionFailure) {
		t.Fatalf("err = %v, want ErrSessionFailure", err)
	}
}

func TestCollect_PageBudget(t *testing.T) {
	// Endless growth: every reveal adds one more page.
	pages := make([][]string, 100)
	for i := range pages {
		pages[i] = []string{string(rune('a'+i%26)) + string(rune('0'+i/26))}
	}
	drv := newFakeList(pages...)

	cfg := quietConfig()
	cfg.MaxPages = 3

	got, _ := collectAll(t, drv, cfg)
	// 4 pages rendered at most (initial + 3 reveals), one row each.
	if len(got) > 4 {
		t.Errorf("collected %d operations, page budget should cap near 4", len(got))
	}
}
