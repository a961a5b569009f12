// Package postgres implements repository.Store on PostgreSQL through pgx.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mamadbah2/selfcheckout/internal/domain/models"
	"github.com/mamadbah2/selfcheckout/internal/repository"
)

const uniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS products (
	id      TEXT PRIMARY KEY,
	barcode TEXT NOT NULL UNIQUE,
	name    TEXT NOT NULL,
	price   BIGINT NOT NULL CHECK (price >= 0),
	tax     BIGINT NOT NULL CHECK (tax >= 0),
	stock   INTEGER NOT NULL CHECK (stock >= 0)
);
CREATE TABLE IF NOT EXISTS sales (
	id        TEXT PRIMARY KEY,
	ts        TIMESTAMPTZ NOT NULL,
	items     JSONB NOT NULL,
	subtotal  BIGINT NOT NULL,
	tax_total BIGINT NOT NULL,
	total     BIGINT NOT NULL,
	token_id  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS tokens (
	id         TEXT PRIMARY KEY,
	sale_id    TEXT NOT NULL UNIQUE,
	ts         TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL,
	status     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS tokens_status_expires_idx ON tokens (status, expires_at);
CREATE TABLE IF NOT EXISTS daily_reports (
	id          BIGSERIAL PRIMARY KEY,
	report_date DATE NOT NULL,
	sales_count INTEGER NOT NULL,
	units_sold  INTEGER NOT NULL,
	subtotal    BIGINT NOT NULL,
	tax_total   BIGINT NOT NULL,
	revenue     BIGINT NOT NULL,
	summary     TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL
);`

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository is the pool-backed store.
type Repository struct {
	queries
	pool *pgxpool.Pool
}

var _ repository.Store = (*Repository)(nil)

// NewRepository connects, pings and applies the schema.
func NewRepository(ctx context.Context, databaseURL string) (*Repository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Repository{queries: queries{db: pool}, pool: pool}, nil
}

// WithinTx runs fn in a read-committed transaction. Products read through tx are
// locked with SELECT ... FOR UPDATE until commit.
func (r *Repository) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	var fnErr error
	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		fnErr = fn(ctx, queries{db: tx, lockRows: true})
		return fnErr
	})
	if err != nil {
		if fnErr != nil {
			return fnErr
		}
		return models.Unavailable("commit transaction", err)
	}
	return nil
}

// Truncate empties every table. Used by integration tests.
func (r *Repository) Truncate(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `TRUNCATE products, sales, tokens, daily_reports`)
	return err
}

// Close releases the pool.
func (r *Repository) Close(context.Context) error {
	r.pool.Close()
	return nil
}

type queries struct {
	db       querier
	lockRows bool
}

const productColumns = `id, barcode, name, price, tax, stock`

func (q queries) ProductByBarcode(ctx context.Context, barcode string) (models.Product, error) {
	return q.findProduct(ctx, `SELECT `+productColumns+` FROM products WHERE barcode = $1`, barcode)
}

func (q queries) ProductByID(ctx context.Context, id string) (models.Product, error) {
	return q.findProduct(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
}

func (q queries) findProduct(ctx context.Context, sql string, arg string) (models.Product, error) {
	if q.lockRows {
		sql += ` FOR UPDATE`
	}
	p, err := scanProduct(q.db.QueryRow(ctx, sql, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Product{}, models.ErrProductNotFound
		}
		return models.Product{}, models.Unavailable("find product", err)
	}
	return p, nil
}

func (q queries) ListProducts(ctx context.Context) ([]models.Product, error) {
	rows, err := q.db.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY name`)
	if err != nil {
		return nil, models.Unavailable("list products", err)
	}
	defer rows.Close()

	products := make([]models.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, models.Unavailable("scan product", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, models.Unavailable("list products", err)
	}
	return products, nil
}

func (q queries) AdjustStock(ctx context.Context, id string, delta int) error {
	tag, err := q.db.Exec(ctx, `UPDATE products SET stock = stock + $2 WHERE id = $1 AND stock + $2 >= 0`, id, delta)
	if err != nil {
		return models.Unavailable("adjust stock", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	current, err := q.ProductByID(ctx, id)
	if err != nil {
		return err
	}
	return &models.InsufficientStockError{ProductID: id, Requested: -delta, Available: current.Stock}
}

func (q queries) UpsertProduct(ctx context.Context, p models.Product) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO products (id, barcode, name, price, tax, stock)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			barcode = EXCLUDED.barcode,
			name = EXCLUDED.name,
			price = EXCLUDED.price,
			tax = EXCLUDED.tax,
			stock = EXCLUDED.stock`,
		p.ID, p.Barcode, p.Name, int64(p.Price), int64(p.Tax), p.Stock)
	if err != nil {
		if isUniqueViolation(err) {
			return &models.ValidationError{Field: "barcode", Reason: "already assigned to another product"}
		}
		return models.Unavailable("upsert product", err)
	}
	return nil
}

func (q queries) DeleteProduct(ctx context.Context, id string) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return models.Unavailable("delete product", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrProductNotFound
	}
	return nil
}

func (q queries) AppendSale(ctx context.Context, sale models.SaleRecord) error {
	items, err := json.Marshal(sale.Items)
	if err != nil {
		return fmt.Errorf("marshal sale items: %w", err)
	}

	_, err = q.db.Exec(ctx, `
		INSERT INTO sales (id, ts, items, subtotal, tax_total, total, token_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		sale.ID, sale.Timestamp, items, int64(sale.Subtotal), int64(sale.TaxTotal), int64(sale.Total), sale.TokenID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("sale %s: %w", sale.ID, models.ErrDuplicateID)
		}
		return models.Unavailable("insert sale", err)
	}
	return nil
}

func (q queries) AppendToken(ctx context.Context, token models.ExitToken) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO tokens (id, sale_id, ts, expires_at, status)
		VALUES ($1, $2, $3, $4, $5)`,
		token.ID, token.SaleID, token.Timestamp, token.ExpiresAt, string(token.Status))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("token %s: %w", token.ID, models.ErrDuplicateID)
		}
		return models.Unavailable("insert token", err)
	}
	return nil
}

const saleColumns = `id, ts, items, subtotal, tax_total, total, token_id`

func (q queries) GetSale(ctx context.Context, id string) (models.SaleRecord, error) {
	sale, err := scanSale(q.db.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.SaleRecord{}, models.ErrSaleNotFound
		}
		return models.SaleRecord{}, models.Unavailable("find sale", err)
	}
	return sale, nil
}

const tokenColumns = `id, sale_id, ts, expires_at, status`

func (q queries) GetToken(ctx context.Context, id string) (models.ExitToken, error) {
	token, err := scanToken(q.db.QueryRow(ctx, `SELECT `+tokenColumns+` FROM tokens WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ExitToken{}, models.ErrTokenNotFound
		}
		return models.ExitToken{}, models.Unavailable("find token", err)
	}
	return token, nil
}

func (q queries) UpdateTokenStatus(ctx context.Context, id string, from, to models.TokenStatus) error {
	tag, err := q.db.Exec(ctx, `UPDATE tokens SET status = $3 WHERE id = $1 AND status = $2`, id, string(from), string(to))
	if err != nil {
		return models.Unavailable("update token status", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := q.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tokens WHERE id = $1)`, id).Scan(&exists); err != nil {
		return models.Unavailable("find token", err)
	}
	if !exists {
		return models.ErrTokenNotFound
	}
	return models.ErrStatusConflict
}

func (q queries) ListSales(ctx context.Context) ([]models.SaleRecord, error) {
	rows, err := q.db.Query(ctx, `SELECT `+saleColumns+` FROM sales ORDER BY ts, id`)
	if err != nil {
		return nil, models.Unavailable("list sales", err)
	}
	defer rows.Close()

	sales := make([]models.SaleRecord, 0)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, models.Unavailable("scan sale", err)
		}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, models.Unavailable("list sales", err)
	}
	return sales, nil
}

func (q queries) ListTokens(ctx context.Context) ([]models.ExitToken, error) {
	rows, err := q.db.Query(ctx, `SELECT `+tokenColumns+` FROM tokens ORDER BY ts, id`)
	if err != nil {
		return nil, models.Unavailable("list tokens", err)
	}
	defer rows.Close()

	tokens := make([]models.ExitToken, 0)
	for rows.Next() {
		token, err := scanToken(rows)
		if err != nil {
			return nil, models.Unavailable("scan token", err)
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, models.Unavailable("list tokens", err)
	}
	return tokens, nil
}

func (q queries) SaveDailyReport(ctx context.Context, report models.DailyReport) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO daily_reports (report_date, sales_count, units_sold, subtotal, tax_total, revenue, summary, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		report.Date, report.SalesCount, report.UnitsSold, int64(report.Subtotal), int64(report.TaxTotal),
		int64(report.Revenue), report.Summary, report.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert daily report: %w", err)
	}
	return nil
}

func scanProduct(row pgx.Row) (models.Product, error) {
	var (
		p          models.Product
		price, tax int64
	)
	if err := row.Scan(&p.ID, &p.Barcode, &p.Name, &price, &tax, &p.Stock); err != nil {
		return models.Product{}, err
	}
	p.Price = models.Money(price)
	p.Tax = models.Money(tax)
	return p, nil
}

func scanSale(row pgx.Row) (models.SaleRecord, error) {
	var (
		sale                      models.SaleRecord
		items                     []byte
		subtotal, taxTotal, total int64
	)
	if err := row.Scan(&sale.ID, &sale.Timestamp, &items, &subtotal, &taxTotal, &total, &sale.TokenID); err != nil {
		return models.SaleRecord{}, err
	}
	if err := json.Unmarshal(items, &sale.Items); err != nil {
		return models.SaleRecord{}, fmt.Errorf("unmarshal sale items: %w", err)
	}
	sale.Subtotal = models.Money(subtotal)
	sale.TaxTotal = models.Money(taxTotal)
	sale.Total = models.Money(total)
	sale.Timestamp = sale.Timestamp.UTC()
	return sale, nil
}

func scanToken(row pgx.Row) (models.ExitToken, error) {
	var (
		token  models.ExitToken
		status string
		ts     time.Time
		exp    time.Time
	)
	if err := row.Scan(&token.ID, &token.SaleID, &ts, &exp, &status); err != nil {
		return models.ExitToken{}, err
	}
	token.Timestamp = ts.UTC()
	token.ExpiresAt = exp.UTC()
	token.Status = models.TokenStatus(status)
	return token, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
