package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const orderColumns = `id, user_id, order_items, shipping_address, payment_method,
	items_price, shipping_price, tax_price, total_price,
	is_paid, paid_at, payment_result, is_delivered, delivered_at, created_at, updated_at`

type Repository struct {
	db *sql.DB
}

func NewRepository(cred *Credentials) (*Repository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "orders_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

func (r *Repository) CreateOrder(ctx context.Context, order *domain.Order) error {
	itemsJSON, err := json.Marshal(order.OrderItems)
	if err != nil {
		return fmt.Errorf("failed to marshal order items: %w", err)
	}
	addressJSON, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return fmt.Errorf("failed to marshal shipping address: %w", err)
	}
	payload, err := newEventPayload(order, EventOrderCreated, order.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	return r.inTx(ctx, func(tx *sql.Tx) error {
		query := `INSERT INTO orders (id, user_id, order_items, shipping_address, payment_method,
		          items_price, shipping_price, tax_price, total_price, created_at, updated_at)
		          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`

		_, insertErr := tx.ExecContext(ctx, query,
			order.ID,
			order.UserID,
			itemsJSON,
			addressJSON,
			order.PaymentMethod,
			order.Prices.ItemsPrice,
			order.Prices.ShippingPrice,
			order.Prices.TaxPrice,
			order.Prices.TotalPrice,
			order.CreatedAt)
		if insertErr != nil {
			var pqErr *pq.Error
			if errors.As(insertErr, &pqErr) && pqErr.Code == "23505" {
				return ErrDuplicateOrder
			}
			return fmt.Errorf("insert order: %w", insertErr)
		}

		return insertEvent(ctx, tx, order.ID, EventOrderCreated, payload)
	})
}

func (r *Repository) GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}
	return order, nil
}

func (r *Repository) ListOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`
	return r.listOrders(ctx, query, userID)
}

func (r *Repository) ListOrders(ctx context.Context) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC`
	return r.listOrders(ctx, query)
}

func (r *Repository) listOrders(ctx context.Context, query string, args ...any) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders := []*domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return orders, nil
}

func (r *Repository) MarkPaid(ctx context.Context, id uuid.UUID, result domain.PaymentResult, at time.Time) (*domain.Order, error) {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payment result: %w", err)
	}

	// the WHERE clause makes concurrent payments race for a single row update
	query := `UPDATE orders
	          SET is_paid = TRUE, paid_at = $2, payment_result = $3, updated_at = $2
	          WHERE id = $1 AND is_paid = FALSE
	          RETURNING ` + orderColumns

	return r.transition(ctx, id, EventOrderPaid, at, query, id, at.UTC(), resultJSON)
}

func (r *Repository) MarkDelivered(ctx context.Context, id uuid.UUID, at time.Time) (*domain.Order, error) {
	query := `UPDATE orders
	          SET is_delivered = TRUE, delivered_at = $2, updated_at = $2
	          WHERE id = $1 AND is_paid = TRUE AND is_delivered = FALSE
	          RETURNING ` + orderColumns

	return r.transition(ctx, id, EventOrderDelivered, at, query, id, at.UTC())
}

// transition runs a conditional update and records the event in one
// transaction. No updated row means not found or a conflicting status.
func (r *Repository) transition(ctx context.Context, id uuid.UUID, eventType string, at time.Time, query string, args ...any) (*domain.Order, error) {
	var updated *domain.Order
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		order, err := scanOrder(tx.QueryRowContext(ctx, query, args...))
		if errors.Is(err, sql.ErrNoRows) {
			return r.explainNoUpdate(ctx, tx, id)
		}
		if err != nil {
			return fmt.Errorf("update order %s: %w", id, err)
		}

		payload, err := newEventPayload(order, eventType, at)
		if err != nil {
			return fmt.Errorf("failed to marshal event payload: %w", err)
		}
		if err := insertEvent(ctx, tx, id, eventType, payload); err != nil {
			return err
		}
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *Repository) explainNoUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) error {
	var isPaid, isDelivered bool
	err := tx.QueryRowContext(ctx, `SELECT is_paid, is_delivered FROM orders WHERE id = $1`, id).Scan(&isPaid, &isDelivered)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrOrderNotFound
	}
	if err != nil {
		return fmt.Errorf("query order status: %w", err)
	}
	current := (&domain.Order{IsPaid: isPaid, IsDelivered: isDelivered}).Status()
	return fmt.Errorf("%w: order %s is %s", domain.ErrTransitionConflict, id, current)
}

func (r *Repository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	query := `SELECT id, aggregate_id, event_type, payload, created_at
	          FROM outbox_events WHERE processed_at IS NULL ORDER BY id LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox events: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		var e OutboxEvent
		if err := rows.Scan(&e.ID, &e.AggregateId, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}

func (r *Repository) MarkEventAsProcessed(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE outbox_events SET processed_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark event %d processed: %w", id, err)
	}
	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func insertEvent(ctx context.Context, tx *sql.Tx, orderID uuid.UUID, eventType string, payload []byte) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO outbox_events (aggregate_id, event_type, payload) VALUES ($1, $2, $3)`,
		orderID.String(), eventType, payload)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		order       domain.Order
		itemsJSON   []byte
		addressJSON []byte
		resultJSON  []byte
		paidAt      sql.NullTime
		deliveredAt sql.NullTime
	)
	err := row.Scan(
		&order.ID,
		&order.UserID,
		&itemsJSON,
		&addressJSON,
		&order.PaymentMethod,
		&order.Prices.ItemsPrice,
		&order.Prices.ShippingPrice,
		&order.Prices.TaxPrice,
		&order.Prices.TotalPrice,
		&order.IsPaid,
		&paidAt,
		&resultJSON,
		&order.IsDelivered,
		&deliveredAt,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(itemsJSON, &order.OrderItems); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	if err := json.Unmarshal(addressJSON, &order.ShippingAddress); err != nil {
		return nil, fmt.Errorf("unmarshal shipping address: %w", err)
	}
	if len(resultJSON) > 0 {
		var result domain.PaymentResult
		if err := json.Unmarshal(resultJSON, &result); err != nil {
			return nil, fmt.Errorf("unmarshal payment result: %w", err)
		}
		order.PaymentResult = &result
	}
	if paidAt.Valid {
		t := paidAt.Time.UTC()
		order.PaidAt = &t
	}
	if deliveredAt.Valid {
		t := deliveredAt.Time.UTC()
		order.DeliveredAt = &t
	}
	order.CreatedAt = order.CreatedAt.UTC()
	order.UpdatedAt = order.UpdatedAt.UTC()
	return &order, nil
}
