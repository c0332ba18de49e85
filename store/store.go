package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tsunade/collector/bank"
)

// StoredOperation is one row of the operations table.
type StoredOperation struct {
	Hash         string            `json:"hash"`
	Bank         string            `json:"bank"`
	Date         string            `json:"op_date,omitempty"`
	Time         string            `json:"op_time,omitempty"`
	DateTimeText string            `json:"op_datetime_text,omitempty"`
	Text         string            `json:"text"`
	Category     string            `json:"category,omitempty"`
	Amount       decimal.Decimal   `json:"amount"`
	RRN          string            `json:"rrn,omitempty"`
	Details      map[string]string `json:"details,omitempty"`
	InsertedAt   string            `json:"inserted_at"`
}

// InsertBatch stores a batch of operations for bankName, skipping rows
// whose content hash is already present. Returns the number actually
// inserted.
func (s *Store) InsertBatch(ctx context.Context, bankName string, ops []bank.Operation) (int, error) {
	inserted := 0
	err := s.runTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO operations
				(hash, bank, op_date, op_time, op_datetime_text, op_text, category, amount, rrn, details)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(hash) DO NOTHING`)
		if err != nil {
			return fmt.Errorf("store: prepare insert: %w", err)
		}
		defer stmt.Close()

		for i := range ops {
			op := &ops[i]
			details, err := json.Marshal(op.Details)
			if err != nil {
				return fmt.Errorf("store: marshal details: %w", err)
			}
			var opDate, opTime any
			if op.Date != "" {
				opDate = op.Date
				opTime = op.Time.Format("2006-01-02T15:04:05")
			}
			res, err := stmt.ExecContext(ctx,
				op.Hash, bankName, opDate, opTime, op.DateTimeText,
				op.Text, op.Category, op.Amount.String(), op.RRN(), string(details))
			if err != nil {
				return fmt.Errorf("store: insert operation: %w", err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				inserted++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// LatestIdentity returns the legacy identity tuple of the most recently
// stored operation for bankName, or nil on a first run.
func (s *Store) LatestIdentity(ctx context.Context, bankName string) (*bank.LegacyID, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT COALESCE(op_date, ''), op_text, amount, op_datetime_text
		FROM operations WHERE bank = ?
		ORDER BY rowid DESC LIMIT 1`, bankName)

	var id bank.LegacyID
	var amount string
	err := row.Scan(&id.Date, &id.Text, &amount, &id.DateTimeText)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: latest identity: %w", err)
	}
	id.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("store: latest identity amount %q: %w", amount, err)
	}
	return &id, nil
}

// RecentRRNs returns the reference numbers of the n most recently stored
// operations that carry one, newest first.
func (s *Store) RecentRRNs(ctx context.Context, bankName string, n int) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT rrn FROM operations
		WHERE bank = ? AND rrn != ''
		ORDER BY rowid DESC LIMIT ?`, bankName, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent rrns: %w", err)
	}
	defer rows.Close()

	var rrns []string
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, fmt.Errorf("store: scan rrn: %w", err)
		}
		rrns = append(rrns, r)
	}
	return rrns, rows.Err()
}

// Filter narrows ListOperations. Zero values mean "no constraint".
type Filter struct {
	Bank         string
	DateFrom     string // inclusive, YYYY-MM-DD
	DateTo       string // inclusive
	AmountMin    *float64
	AmountMax    *float64
	TextLike     string // case-insensitive substring
	CategoryLike string
	Limit        int // default 50, max 500
	Offset       int
}

func (f *Filter) defaults() {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Limit > 500 {
		f.Limit = 500
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

// ListOperations returns stored operations newest first.
func (s *Store) ListOperations(ctx context.Context, f Filter) ([]StoredOperation, error) {
	f.defaults()

	var where []string
	var args []any
	if f.Bank != "" {
		where = append(where, "bank = ?")
		args = append(args, f.Bank)
	}
	if f.DateFrom != "" {
		where = append(where, "COALESCE(op_date, substr(inserted_at, 1, 10)) >= ?")
		args = append(args, f.DateFrom)
	}
	if f.DateTo != "" {
		where = append(where, "COALESCE(op_date, substr(inserted_at, 1, 10)) <= ?")
		args = append(args, f.DateTo)
	}
	if f.AmountMin != nil {
		where = append(where, "CAST(amount AS REAL) >= ?")
		args = append(args, *f.AmountMin)
	}
	if f.AmountMax != nil {
		where = append(where, "CAST(amount AS REAL) <= ?")
		args = append(args, *f.AmountMax)
	}
	if f.TextLike != "" {
		where = append(where, "op_text LIKE ? COLLATE NOCASE")
		args = append(args, "%"+f.TextLike+"%")
	}
	if f.CategoryLike != "" {
		where = append(where, "category LIKE ? COLLATE NOCASE")
		args = append(args, "%"+f.CategoryLike+"%")
	}

	q := "SELECT hash, bank, COALESCE(op_date, ''), COALESCE(op_time, ''), op_datetime_text, op_text, category, amount, rrn, details, inserted_at FROM operations"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	// op_time (local, second precision) and inserted_at (UTC, millisecond
	// precision) do not collate against each other; order by the effective
	// calendar date first, then op_time within a date (NULLs sort last
	// under DESC), then insertion order.
	q += " ORDER BY COALESCE(op_date, substr(inserted_at, 1, 10)) DESC, op_time DESC, rowid DESC LIMIT ? OFFSET ?"
	args = append(args, f.Limit, f.Offset)

	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list operations: %w", err)
	}
	defer rows.Close()

	var out []StoredOperation
	for rows.Next() {
		var op StoredOperation
		var amount, details string
		if err := rows.Scan(&op.Hash, &op.Bank, &op.Date, &op.Time, &op.DateTimeText,
			&op.Text, &op.Category, &amount, &op.RRN, &details, &op.InsertedAt); err != nil {
			return nil, fmt.Errorf("store: scan operation: %w", err)
		}
		op.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("store: amount %q: %w", amount, err)
		}
		if err := json.Unmarshal([]byte(details), &op.Details); err != nil {
			return nil, fmt.Errorf("store: details: %w", err)
		}
		out = append(out, op)
	}
	return out, rows.Err()
}

// PeriodSum is one bucket of SumByPeriod.
type PeriodSum struct {
	Period string  `json:"period"`
	Count  int     `json:"count"`
	Total  float64 `json:"total"`
}

// SumByPeriod aggregates signed amounts per calendar bucket, newest
// bucket first. Granularity is one of day, week, month, year.
func (s *Store) SumByPeriod(ctx context.Context, granularity, bankName, from, to string, limit int) ([]PeriodSum, error) {
	var bucket string
	switch granularity {
	case "day", "":
		bucket = "COALESCE(op_date, substr(inserted_at, 1, 10))"
	case "week":
		bucket = "strftime('%Y-W%W', COALESCE(op_date, substr(inserted_at, 1, 10)))"
	case "month":
		bucket = "substr(COALESCE(op_date, substr(inserted_at, 1, 10)), 1, 7)"
	case "year":
		bucket = "substr(COALESCE(op_date, substr(inserted_at, 1, 10)), 1, 4)"
	default:
		return nil, fmt.Errorf("store: unknown granularity %q", granularity)
	}
	if limit <= 0 || limit > 1000 {
		limit = 200
	}

	var where []string
	var args []any
	if bankName != "" {
		where = append(where, "bank = ?")
		args = append(args, bankName)
	}
	if from != "" {
		where = append(where, "COALESCE(op_date, substr(inserted_at, 1, 10)) >= ?")
		args = append(args, from)
	}
	if to != "" {
		where = append(where, "COALESCE(op_date, substr(inserted_at, 1, 10)) <= ?")
		args = append(args, to)
	}

	q := "SELECT " + bucket + " AS period, COUNT(*), ROUND(SUM(CAST(amount AS REAL)), 2) FROM operations"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " GROUP BY period ORDER BY period DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: sum by period: %w", err)
	}
	defer rows.Close()

	var out []PeriodSum
	for rows.Next() {
		var p PeriodSum
		if err := rows.Scan(&p.Period, &p.Count, &p.Total); err != nil {
			return nil, fmt.Errorf("store: scan period sum: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
