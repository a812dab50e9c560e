package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/bna-integrations/checkout-reconciler/internal/order"
)

// Repository implements order.Store on top of *sql.DB. It is intended for
// dependency injection; prefer adding methods here over package globals.
type Repository struct {
	DB *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{DB: db}
}

// Create inserts an order row together with its metadata bag.
func (r *Repository) Create(ctx context.Context, o *order.Order) error {
	if r.DB == nil {
		return fmt.Errorf("database not initialized")
	}
	query := `
        INSERT INTO orders (id, status, total, currency,
            email, first_name, last_name, phone, address, city, state, postcode, country)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
        ON CONFLICT (id) DO UPDATE SET
            status = EXCLUDED.status,
            total = EXCLUDED.total,
            currency = EXCLUDED.currency,
            updated_at = CURRENT_TIMESTAMP
    `
	b := o.Billing
	if _, err := r.DB.ExecContext(ctx, query, o.ID, string(o.Status), o.Total, o.Currency,
		b.Email, b.FirstName, b.LastName, b.Phone, b.Address, b.City, b.State, b.Postcode, b.Country); err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	for k, v := range o.Metadata {
		if err := r.SetMeta(ctx, o.ID, k, v); err != nil {
			return err
		}
	}
	for _, it := range o.Items {
		if _, err := r.DB.ExecContext(ctx, `
            INSERT INTO order_items (order_id, name, quantity, price)
            VALUES ($1, $2, $3, $4)
        `, o.ID, it.Name, it.Quantity, it.Price); err != nil {
			return fmt.Errorf("failed to insert order item %q: %w", it.Name, err)
		}
	}
	log.Printf("[DB] Inserted order: %s", o.ID)
	return nil
}

// Get loads an order with its metadata, items and notes.
func (r *Repository) Get(ctx context.Context, id string) (*order.Order, error) {
	if r.DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	row := r.DB.QueryRowContext(ctx, `
        SELECT id, status, total, currency,
               email, first_name, last_name, phone, address, city, state, postcode, country
        FROM orders WHERE id = $1
    `, id)
	o, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, order.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order %s: %w", id, err)
	}
	if err := r.hydrate(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// FindByMeta returns the first order carrying key=value in its metadata bag.
func (r *Repository) FindByMeta(ctx context.Context, key, value string) (*order.Order, error) {
	if r.DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	row := r.DB.QueryRowContext(ctx, `
        SELECT o.id, o.status, o.total, o.currency,
               o.email, o.first_name, o.last_name, o.phone, o.address, o.city, o.state, o.postcode, o.country
        FROM orders o
        JOIN order_meta m ON m.order_id = o.id
        WHERE m.meta_key = $1 AND m.meta_value = $2
        ORDER BY o.created_at DESC
        LIMIT 1
    `, key, value)
	o, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, order.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find order by %s: %w", key, err)
	}
	if err := r.hydrate(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// RecentWithMeta returns up to limit most-recent orders carrying key.
func (r *Repository) RecentWithMeta(ctx context.Context, key string, limit int) ([]*order.Order, error) {
	if r.DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	return r.list(ctx, `
        SELECT o.id, o.status, o.total, o.currency,
               o.email, o.first_name, o.last_name, o.phone, o.address, o.city, o.state, o.postcode, o.country
        FROM orders o
        JOIN order_meta m ON m.order_id = o.id AND m.meta_key = $1
        ORDER BY o.created_at DESC
        LIMIT $2
    `, key, limit)
}

// Recent returns up to limit most-recent orders.
func (r *Repository) Recent(ctx context.Context, limit int) ([]*order.Order, error) {
	if r.DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	return r.list(ctx, `
        SELECT id, status, total, currency,
               email, first_name, last_name, phone, address, city, state, postcode, country
        FROM orders
        ORDER BY created_at DESC
        LIMIT $1
    `, limit)
}

// UpdateStatus updates the order status.
func (r *Repository) UpdateStatus(ctx context.Context, id string, status order.Status) error {
	if r.DB == nil {
		return fmt.Errorf("database not initialized")
	}
	res, err := r.DB.ExecContext(ctx, `
        UPDATE orders
        SET status = $1, updated_at = CURRENT_TIMESTAMP
        WHERE id = $2
    `, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return order.ErrNotFound
	}
	log.Printf("[DB] Updated order status: %s -> %s", id, status)
	return nil
}

// SetMeta upserts a single metadata key.
func (r *Repository) SetMeta(ctx context.Context, id, key, value string) error {
	if r.DB == nil {
		return fmt.Errorf("database not initialized")
	}
	if _, err := r.DB.ExecContext(ctx, `
        INSERT INTO order_meta (order_id, meta_key, meta_value)
        VALUES ($1, $2, $3)
        ON CONFLICT (order_id, meta_key) DO UPDATE SET
            meta_value = EXCLUDED.meta_value,
            updated_at = CURRENT_TIMESTAMP
    `, id, key, value); err != nil {
		return fmt.Errorf("failed to set order meta %s: %w", key, err)
	}
	return nil
}

// AppendNote appends to the order's note log.
func (r *Repository) AppendNote(ctx context.Context, id, note string) error {
	if r.DB == nil {
		return fmt.Errorf("database not initialized")
	}
	if _, err := r.DB.ExecContext(ctx, `
        INSERT INTO order_notes (order_id, note)
        VALUES ($1, $2)
    `, id, note); err != nil {
		return fmt.Errorf("failed to append order note: %w", err)
	}
	log.Printf("[DB] Order %s note: %s", id, note)
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*order.Order, error) {
	var o order.Order
	var status string
	var total sql.NullFloat64
	b := &o.Billing
	if err := row.Scan(&o.ID, &status, &total, &o.Currency,
		&b.Email, &b.FirstName, &b.LastName, &b.Phone, &b.Address, &b.City, &b.State, &b.Postcode, &b.Country); err != nil {
		return nil, err
	}
	o.Status = order.Status(status)
	o.Total = total.Float64
	return &o, nil
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]*order.Order, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var out []*order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}
	for _, o := range out {
		if err := r.hydrate(ctx, o); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// hydrate fills metadata, items and notes for a scanned order row.
func (r *Repository) hydrate(ctx context.Context, o *order.Order) error {
	o.Metadata = map[string]string{}
	metaRows, err := r.DB.QueryContext(ctx,
		`SELECT meta_key, meta_value FROM order_meta WHERE order_id = $1`, o.ID)
	if err != nil {
		return fmt.Errorf("failed to load order meta: %w", err)
	}
	defer metaRows.Close()
	for metaRows.Next() {
		var k, v string
		if err := metaRows.Scan(&k, &v); err != nil {
			return fmt.Errorf("failed to scan order meta: %w", err)
		}
		o.Metadata[k] = v
	}
	if err := metaRows.Err(); err != nil {
		return fmt.Errorf("error iterating order meta: %w", err)
	}

	itemRows, err := r.DB.QueryContext(ctx,
		`SELECT name, quantity, price FROM order_items WHERE order_id = $1 ORDER BY id`, o.ID)
	if err != nil {
		return fmt.Errorf("failed to load order items: %w", err)
	}
	defer itemRows.Close()
	for itemRows.Next() {
		var it order.Item
		if err := itemRows.Scan(&it.Name, &it.Quantity, &it.Price); err != nil {
			return fmt.Errorf("failed to scan order item: %w", err)
		}
		o.Items = append(o.Items, it)
	}
	if err := itemRows.Err(); err != nil {
		return fmt.Errorf("error iterating order items: %w", err)
	}

	noteRows, err := r.DB.QueryContext(ctx,
		`SELECT note FROM order_notes WHERE order_id = $1 ORDER BY id`, o.ID)
	if err != nil {
		return fmt.Errorf("failed to load order notes: %w", err)
	}
	defer noteRows.Close()
	for noteRows.Next() {
		var n string
		if err := noteRows.Scan(&n); err != nil {
			return fmt.Errorf("failed to scan order note: %w", err)
		}
		o.Notes = append(o.Notes, n)
	}
	return noteRows.Err()
}
