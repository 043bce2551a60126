package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"nursery-api/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

//go:embed schema.sql
var schemaSQL string

var (
	// ErrNotFound is returned when a looked-up row does not exist
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when an insert hits a unique constraint
	ErrDuplicate = errors.New("already exists")
)

const uniqueViolation = "23505"

const productColumns = "id, name, price, stock, category_id, created_at, updated_at"

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// NewStoreFromDB wraps an existing connection
func NewStoreFromDB(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate creates the tables the service needs if they do not exist
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product,
		"SELECT "+productColumns+" FROM products WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// ListProducts retrieves products, optionally limited to one category
func (s *Store) ListProducts(ctx context.Context, categoryID *int64) ([]models.Product, error) {
	products := []models.Product{}
	var err error
	if categoryID != nil {
		err = s.db.SelectContext(ctx, &products,
			"SELECT "+productColumns+" FROM products WHERE category_id = $1 ORDER BY id", *categoryID)
	} else {
		err = s.db.SelectContext(ctx, &products,
			"SELECT "+productColumns+" FROM products ORDER BY id")
	}
	return products, err
}

// CreateProduct inserts a new product
func (s *Store) CreateProduct(ctx context.Context, product *models.Product) error {
	query := `
		INSERT INTO products (name, price, stock, category_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, product, query,
		product.Name, product.Price, product.Stock, product.CategoryID)
}

// UpdateProduct writes only the columns set in patch. Columns left nil keep
// whatever the row holds at write time, so a concurrent stock decrement is
// never overwritten by a name or price change.
func (s *Store) UpdateProduct(ctx context.Context, id int64, patch models.ProductPatch) (*models.Product, error) {
	query := `
		UPDATE products
		SET name = COALESCE($1, name),
			price = COALESCE($2, price),
			stock = COALESCE($3, stock),
			category_id = COALESCE($4, category_id),
			updated_at = NOW()
		WHERE id = $5
		RETURNING ` + productColumns

	var product models.Product
	err := s.db.GetContext(ctx, &product, query,
		patch.Name, patch.Price, patch.Stock, patch.CategoryID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// ListCategories returns every category ordered by name
func (s *Store) ListCategories(ctx context.Context) ([]models.Category, error) {
	categories := []models.Category{}
	err := s.db.SelectContext(ctx, &categories, "SELECT id, name FROM categories ORDER BY name")
	return categories, err
}

// CreateCategory inserts a category. ErrDuplicate is returned when the name
// is taken.
func (s *Store) CreateCategory(ctx context.Context, category *models.Category) error {
	err := s.db.GetContext(ctx, &category.ID,
		"INSERT INTO categories (name) VALUES ($1) RETURNING id", category.Name)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("category %q: %w", category.Name, ErrDuplicate)
	}
	return err
}

// GetDashboardSummary aggregates order counts, revenue and low stock products
func (s *Store) GetDashboardSummary(ctx context.Context, lowStockThreshold int) (*models.DashboardSummary, error) {
	summary := &models.DashboardSummary{
		OrdersByStatus:   []models.StatusCount{},
		LowStockProducts: []models.Product{},
	}

	err := s.db.SelectContext(ctx, &summary.OrdersByStatus,
		"SELECT status, COUNT(*) AS count FROM orders GROUP BY status ORDER BY status")
	if err != nil {
		return nil, fmt.Errorf("failed to count orders by status: %w", err)
	}
	for _, sc := range summary.OrdersByStatus {
		summary.TotalOrders += sc.Count
	}

	var totals struct {
		Paid   models.Money `db:"paid"`
		Unpaid models.Money `db:"unpaid"`
	}
	err = s.db.GetContext(ctx, &totals, `
		SELECT
			COALESCE(SUM(total_amount) FILTER (WHERE payment_status = 'paid'), 0) AS paid,
			COALESCE(SUM(total_amount) FILTER (WHERE payment_status = 'unpaid' AND status <> 'cancelled'), 0) AS unpaid
		FROM orders`)
	if err != nil {
		return nil, fmt.Errorf("failed to sum order totals: %w", err)
	}
	summary.PaidRevenue = totals.Paid
	summary.UnpaidAmount = totals.Unpaid

	err = s.db.SelectContext(ctx, &summary.LowStockProducts,
		"SELECT "+productColumns+" FROM products WHERE stock <= $1 ORDER BY stock, id", lowStockThreshold)
	if err != nil {
		return nil, fmt.Errorf("failed to list low stock products: %w", err)
	}

	return summary, nil
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
