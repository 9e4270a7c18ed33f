// Package shopdb reads report rows straight from the shop database.
package shopdb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/shopreports/internal/ledger"
	"github.com/odyssey-erp/shopreports/internal/platform/db"
	"github.com/odyssey-erp/shopreports/internal/reports"
)

type querier interface {
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
}

// Source implements reports.Source over a Postgres read replica. Numeric
// columns are read as text so malformed values follow the same coercion
// path as API payloads.
type Source struct {
	run func(ctx context.Context, fn func(querier) error) error
}

var _ reports.Source = (*Source)(nil)

// NewSource wraps a pool. Every report query runs in its own read-only
// transaction bounded by statementTimeout.
func NewSource(pool *pgxpool.Pool, statementTimeout time.Duration) *Source {
	return &Source{run: func(ctx context.Context, fn func(querier) error) error {
		return db.WithReadOnlyTx(ctx, pool, statementTimeout, func(tx pgx.Tx) error {
			return fn(tx)
		})
	}}
}

// where accumulates positional conditions.
type where struct {
	conditions []string
	args       []interface{}
}

func (w *where) add(format string, arg interface{}) {
	w.args = append(w.args, arg)
	w.conditions = append(w.conditions, fmt.Sprintf(format, len(w.args)))
}

func (w *where) addDates(column string, q reports.Query) {
	if !q.From.IsZero() {
		w.add(column+" >= $%d", q.From)
	}
	if !q.To.IsZero() {
		w.add(column+" < $%d", q.To.AddDate(0, 0, 1))
	}
}

func (w *where) addSearch(q reports.Query, columns ...string) {
	if q.SearchBy == "" {
		return
	}
	w.args = append(w.args, "%"+q.SearchBy+"%")
	parts := make([]string, 0, len(columns))
	for _, col := range columns {
		parts = append(parts, fmt.Sprintf("%s ILIKE $%d", col, len(w.args)))
	}
	w.conditions = append(w.conditions, "("+strings.Join(parts, " OR ")+")")
}

func (w *where) String() string {
	if len(w.conditions) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(w.conditions, " AND ")
}

func transactionsQuery(q reports.Query) (string, []interface{}) {
	w := &where{}
	w.add("t.shop_id = $%d", q.ShopID)
	if q.CustomerID > 0 {
		w.add("t.customer_id = $%d", q.CustomerID)
	}
	if q.VendorID > 0 {
		w.add("t.vendor_id = $%d", q.VendorID)
	}
	if len(q.TransactionTypes) > 0 {
		w.add("t.type = ANY($%d)", q.TransactionTypes)
	}
	w.addDates("t.date", q)
	w.addSearch(q, "t.transaction_number", "c.name", "v.name", "i.name")
	sql := `SELECT t.id, t.transaction_number, t.date, t.created_at, t.type,
	c.id, c.name, v.id, v.name, i.id, i.name, u.id, u.name,
	t.quantity::text, t.price::text, t.total::text, t.paid::text, t.payment_type
FROM transactions t
LEFT JOIN customers c ON c.id = t.customer_id
LEFT JOIN vendors v ON v.id = t.vendor_id
LEFT JOIN inventories i ON i.id = t.inventory_id
LEFT JOIN unit_of_measures u ON u.id = i.unit_of_measure_id
` + w.String() + `
ORDER BY t.date, t.id`
	return sql, w.args
}

func stockTrackQuery(q reports.Query) (string, []interface{}) {
	w := &where{}
	w.add("s.shop_id = $%d", q.ShopID)
	if len(q.IDs) > 0 {
		w.add("s.inventory_id = ANY($%d)", q.IDs)
	}
	w.addDates("s.date", q)
	w.addSearch(q, "s.reference", "i.name")
	sql := `SELECT s.id, s.reference, s.date, s.created_at, i.id, i.name, u.id, u.name,
	s.is_purchased, s.stock::text, s.unit_price::text, s.price::text
FROM stock_tracks s
LEFT JOIN inventories i ON i.id = s.inventory_id
LEFT JOIN unit_of_measures u ON u.id = i.unit_of_measure_id
` + w.String() + `
ORDER BY s.date, s.id`
	return sql, w.args
}

func expensesQuery(q reports.Query) (string, []interface{}) {
	w := &where{}
	w.add("e.shop_id = $%d", q.ShopID)
	w.addDates("e.date", q)
	w.addSearch(q, "e.title", "e.type")
	sql := `SELECT e.id, e.date, e.created_at, e.title, e.type, e.amount::text, e.remarks
FROM expenses e
` + w.String() + `
ORDER BY e.date, e.id`
	return sql, w.args
}

func stockQuery(q reports.Query) (string, []interface{}) {
	w := &where{}
	w.add("i.shop_id = $%d", q.ShopID)
	if len(q.IDs) > 0 {
		w.add("i.id = ANY($%d)", q.IDs)
	}
	w.addSearch(q, "i.name")
	sql := `SELECT i.id, i.name, u.id, u.name, i.stock::text, i.price::text
FROM inventories i
LEFT JOIN unit_of_measures u ON u.id = i.unit_of_measure_id
` + w.String() + `
ORDER BY i.name, i.id`
	return sql, w.args
}

// Transactions implements reports.Source.
func (s *Source) Transactions(ctx context.Context, q reports.Query) ([]ledger.RawTransaction, error) {
	sql, args := transactionsQuery(q)
	return collect(ctx, s, "transactions", sql, args, func(row pgx.Rows) (ledger.RawTransaction, error) {
		var (
			out                     ledger.RawTransaction
			date, created           *time.Time
			txType, payment         *string
			customer, vendor        nullableNamed
			inventory, unit         nullableNamed
			qty, price, total, paid *string
		)
		err := row.Scan(&out.ID, &out.TransactionNumber, &date, &created, &txType,
			&customer.id, &customer.name, &vendor.id, &vendor.name,
			&inventory.id, &inventory.name, &unit.id, &unit.name,
			&qty, &price, &total, &paid, &payment)
		if err != nil {
			return out, err
		}
		out.Date, out.CreatedAt = timeText(date), timeText(created)
		out.Type, out.PaymentType = deref(txType), deref(payment)
		out.Customer, out.Vendor = customer.named(), vendor.named()
		out.Inventory = inventory.inventory(unit)
		out.Quantity, out.Price = numberText(qty), numberText(price)
		out.Total, out.Paid = numberText(total), numberText(paid)
		return out, nil
	})
}

// StockTrack implements reports.Source.
func (s *Source) StockTrack(ctx context.Context, q reports.Query) ([]ledger.RawStockTrack, error) {
	sql, args := stockTrackQuery(q)
	return collect(ctx, s, "stock track", sql, args, func(row pgx.Rows) (ledger.RawStockTrack, error) {
		var (
			out                     ledger.RawStockTrack
			reference               *string
			date, created           *time.Time
			inventory, unit         nullableNamed
			stock, unitPrice, price *string
		)
		err := row.Scan(&out.ID, &reference, &date, &created,
			&inventory.id, &inventory.name, &unit.id, &unit.name,
			&out.IsPurchased, &stock, &unitPrice, &price)
		if err != nil {
			return out, err
		}
		out.Reference = deref(reference)
		out.Date, out.CreatedAt = timeText(date), timeText(created)
		out.Inventory = inventory.inventory(unit)
		out.Stock, out.UnitPrice, out.Price = numberText(stock), numberText(unitPrice), numberText(price)
		return out, nil
	})
}

// Expenses implements reports.Source.
func (s *Source) Expenses(ctx context.Context, q reports.Query) ([]ledger.RawExpense, error) {
	sql, args := expensesQuery(q)
	return collect(ctx, s, "expenses", sql, args, func(row pgx.Rows) (ledger.RawExpense, error) {
		var (
			out           ledger.RawExpense
			date, created *time.Time
			title, kind   *string
			amount        *string
		)
		if err := row.Scan(&out.ID, &date, &created, &title, &kind, &amount, &out.Remarks); err != nil {
			return out, err
		}
		out.Date, out.CreatedAt = timeText(date), timeText(created)
		out.Title, out.Type = deref(title), deref(kind)
		out.Amount = numberText(amount)
		return out, nil
	})
}

// Stock implements reports.Source.
func (s *Source) Stock(ctx context.Context, q reports.Query) ([]ledger.RawStock, error) {
	sql, args := stockQuery(q)
	return collect(ctx, s, "stock", sql, args, func(row pgx.Rows) (ledger.RawStock, error) {
		var (
			out          ledger.RawStock
			unit         nullableNamed
			stock, price *string
		)
		if err := row.Scan(&out.ID, &out.Name, &unit.id, &unit.name, &stock, &price); err != nil {
			return out, err
		}
		out.UnitOfMeasure = unit.named()
		out.Stock, out.Price = numberText(stock), numberText(price)
		return out, nil
	})
}

func collect[T any](ctx context.Context, s *Source, what, sql string, args []interface{}, scan func(pgx.Rows) (T, error)) ([]T, error) {
	out := make([]T, 0)
	err := s.run(ctx, func(q querier) error {
		rows, err := q.Query(ctx, sql, args...)
		if err != nil {
			return fmt.Errorf("shopdb: query %s: %w", what, err)
		}
		defer rows.Close()
		for rows.Next() {
			item, err := scan(rows)
			if err != nil {
				return fmt.Errorf("shopdb: scan %s: %w", what, err)
			}
			out = append(out, item)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("shopdb: read %s: %w", what, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type nullableNamed struct {
	id   *int64
	name *string
}

func (n nullableNamed) named() *ledger.RawNamed {
	if n.id == nil {
		return nil
	}
	return &ledger.RawNamed{ID: *n.id, Name: n.name}
}

func (n nullableNamed) inventory(unit nullableNamed) *ledger.RawInventory {
	if n.id == nil {
		return nil
	}
	return &ledger.RawInventory{ID: *n.id, Name: n.name, UnitOfMeasure: unit.named()}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func timeText(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func numberText(s *string) ledger.Number {
	if s == nil {
		return ledger.Number{}
	}
	return ledger.ParseNumber(*s)
}
