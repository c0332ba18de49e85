package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tsunade/collector/bank"

	_ "modernc.org/sqlite"
)

func testOp(text string, amount int64, date string) bank.Operation {
	op := bank.Operation{
		Text:   text,
		Amount: decimal.NewFromInt(amount),
	}
	if date != "" {
		t, _ := time.ParseInLocation("2006-01-02", date, time.Local)
		op.Date = date
		op.Time = t.Add(12 * time.Hour)
		op.DateTimeText = date + ", 12:00"
	}
	op.Hash = bank.Hash(&op)
	return op
}

func mustInsert(t *testing.T, s *Store, bankName string, ops ...bank.Operation) int {
	t.Helper()
	n, err := s.InsertBatch(context.Background(), bankName, ops)
	if err != nil {
		t.Fatalf("InsertBatch: %v", err)
	}
	return n
}

func TestInsertBatch_Idempotent(t *testing.T) {
	// WHAT: re-delivering a batch that was already stored inserts nothing.
	// WHY: a crashed run re-collects from the top; the content hash key
	// must absorb the overlap.
	s := OpenMemory(t)
	ops := []bank.Operation{
		testOp("Пятёрочка", -320, "2024-03-05"),
		testOp("Перевод", -1500, "2024-03-04"),
	}

	if n := mustInsert(t, s, "vtb", ops...); n != 2 {
		t.Fatalf("first insert: %d rows, want 2", n)
	}
	if n := mustInsert(t, s, "vtb", ops...); n != 0 {
		t.Fatalf("re-insert: %d rows, want 0", n)
	}

	got, err := s.ListOperations(context.Background(), Filter{Bank: "vtb"})
	if err != nil {
		t.Fatalf("ListOperations: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("stored %d rows, want 2", len(got))
	}
}

func TestLatestIdentity(t *testing.T) {
	s := OpenMemory(t)

	id, err := s.LatestIdentity(context.Background(), "vtb")
	if err != nil {
		t.Fatalf("LatestIdentity: %v", err)
	}
	if id != nil {
		t.Fatalf("first run identity = %+v, want nil", id)
	}

	mustInsert(t, s, "vtb", testOp("старая", -100, "2024-03-01"))
	mustInsert(t, s, "vtb", testOp("новейшая", -200, "2024-03-02"))
	mustInsert(t, s, "alfa", testOp("чужой банк", -300, "2024-03-03"))

	id, err = s.LatestIdentity(context.Background(), "vtb")
	if err != nil {
		t.Fatalf("LatestIdentity: %v", err)
	}
	if id == nil || id.Text != "новейшая" {
		t.Fatalf("identity = %+v, want the most recent vtb row", id)
	}
	if !id.Amount.Equal(decimal.NewFromInt(-200)) {
		t.Errorf("identity amount = %s, want -200", id.Amount)
	}
}

func TestRecentRRNs(t *testing.T) {
	s := OpenMemory(t)

	withRRN := func(text, rrn string) bank.Operation {
		op := testOp(text, -50, "2024-03-05")
		op.Details = map[string]string{"номер операции": rrn}
		op.Hash = bank.Hash(&op)
		return op
	}
	mustInsert(t, s, "vtb",
		withRRN("a", "111"),
		testOp("без номера", -60, "2024-03-05"),
		withRRN("b", "222"),
		withRRN("c", "333"),
	)

	rrns, err := s.RecentRRNs(context.Background(), "vtb", 2)
	if err != nil {
		t.Fatalf("RecentRRNs: %v", err)
	}
	if len(rrns) != 2 || rrns[0] != "333" || rrns[1] != "222" {
		t.Fatalf("rrns = %v, want newest two", rrns)
	}
}

func TestListOperations_Filters(t *testing.T) {
	s := OpenMemory(t)

	groceries := testOp("Пятёрочка", -320, "2024-03-05")
	groceries.Category = "Супермаркеты"
	groceries.Hash = bank.Hash(&groceries)
	mustInsert(t, s, "vtb",
		groceries,
		testOp("Перевод другу", -1500, "2024-03-01"),
		testOp("Зарплата", 85000, "2024-02-28"),
	)

	ctx := context.Background()

	byDate, err := s.ListOperations(ctx, Filter{DateFrom: "2024-03-01", DateTo: "2024-03-31"})
	if err != nil {
		t.Fatalf("date filter: %v", err)
	}
	if len(byDate) != 2 {
		t.Fatalf("date filter returned %d rows, want 2", len(byDate))
	}

	credit := 0.0
	income, err := s.ListOperations(ctx, Filter{AmountMin: &credit})
	if err != nil {
		t.Fatalf("amount filter: %v", err)
	}
	if len(income) != 1 || income[0].Text != "Зарплата" {
		t.Fatalf("amount filter returned %v, want only the credit", income)
	}

	byText, err := s.ListOperations(ctx, Filter{TextLike: "перевод"})
	if err != nil {
		t.Fatalf("text filter: %v", err)
	}
	if len(byText) != 1 || byText[0].Text != "Перевод другу" {
		t.Fatalf("text filter must be case-insensitive, got %v", byText)
	}

	byCategory, err := s.ListOperations(ctx, Filter{CategoryLike: "супермаркет"})
	if err != nil {
		t.Fatalf("category filter: %v", err)
	}
	if len(byCategory) != 1 || byCategory[0].Text != "Пятёрочка" {
		t.Fatalf("category filter returned %v", byCategory)
	}
}

func TestListOperations_NewestFirstAndPaged(t *testing.T) {
	s := OpenMemory(t)
	mustInsert(t, s, "vtb",
		testOp("a", -1, "2024-03-01"),
		testOp("b", -2, "2024-03-02"),
		testOp("c", -3, "2024-03-03"),
	)

	page, err := s.ListOperations(context.Background(), Filter{Limit: 2})
	if err != nil {
		t.Fatalf("ListOperations: %v", err)
	}
	if len(page) != 2 || page[0].Text != "c" || page[1].Text != "b" {
		t.Fatalf("page 1 = %v, want newest first", page)
	}

	page, err = s.ListOperations(context.Background(), Filter{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("ListOperations: %v", err)
	}
	if len(page) != 1 || page[0].Text != "a" {
		t.Fatalf("page 2 = %v", page)
	}
}

func testOpAt(text string, amount int64, date string, hour int) bank.Operation {
	op := testOp(text, amount, date)
	d, _ := time.ParseInLocation("2006-01-02", date, time.Local)
	op.Time = d.Add(time.Duration(hour) * time.Hour)
	op.DateTimeText = fmt.Sprintf("%s, %02d:00", date, hour)
	op.Hash = bank.Hash(&op)
	return op
}

func TestListOperations_MixedDatedAndUndatedOrdering(t *testing.T) {
	// WHAT: rows without a canonical date sort by their insertion date,
	// dated rows by their date, and within one date by time of day.
	// WHY: op_time and inserted_at are stored in different formats; only
	// the calendar date is comparable across the two populations.
	s := OpenMemory(t)

	mustInsert(t, s, "vtb",
		testOpAt("вечером", -10, "2024-03-05", 18),
		testOpAt("утром", -20, "2024-03-05", 9),
	)
	undated := bank.Operation{
		Text:         "без даты",
		Amount:       decimal.NewFromInt(-30),
		DateTimeText: "5 марта",
	}
	undated.Hash = bank.Hash(&undated)
	mustInsert(t, s, "vtb", undated)

	got, err := s.ListOperations(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("ListOperations: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("listed %d rows, want 3", len(got))
	}
	want := []string{"без даты", "вечером", "утром"}
	for i := range want {
		if got[i].Text != want[i] {
			t.Fatalf("order = [%s %s %s], want %v",
				got[0].Text, got[1].Text, got[2].Text, want)
		}
	}
}

func TestSumByPeriod(t *testing.T) {
	s := OpenMemory(t)
	mustInsert(t, s, "vtb",
		testOp("март а", -100, "2024-03-05"),
		testOp("март б", -250, "2024-03-20"),
		testOp("февраль", -50, "2024-02-10"),
	)

	months, err := s.SumByPeriod(context.Background(), "month", "vtb", "", "", 0)
	if err != nil {
		t.Fatalf("SumByPeriod: %v", err)
	}
	if len(months) != 2 {
		t.Fatalf("buckets = %v, want 2 months", months)
	}
	if months[0].Period != "2024-03" || months[0].Count != 2 || months[0].Total != -350 {
		t.Errorf("march bucket = %+v, want count 2 total -350", months[0])
	}
	if months[1].Period != "2024-02" || months[1].Total != -50 {
		t.Errorf("february bucket = %+v", months[1])
	}

	if _, err := s.SumByPeriod(context.Background(), "decade", "", "", "", 0); err == nil {
		t.Fatal("unknown granularity must be rejected")
	}
}
