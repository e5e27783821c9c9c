package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"storefront/model"
)

const productColumns = `id, name, price, description, image_url, available, created_at`

// PostgresStore is a Store backed by Postgres. Row locks taken inside a
// transaction serialize concurrent MarkSold calls for the same product.
type PostgresStore struct {
	DB *sqlx.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping postgres")
	}
	return &PostgresStore{DB: db}, nil
}

func (s *PostgresStore) Close() error { return s.DB.Close() }

// CreateProduct inserts an available product and returns it with the
// database-assigned creation time.
func (s *PostgresStore) CreateProduct(ctx context.Context, np model.NewProduct) (model.Product, error) {
	if err := np.Validate(); err != nil {
		return model.Product{}, err
	}
	p := model.Product{
		ID:          uuid.NewString(),
		Name:        np.Name,
		Price:       np.Price,
		Description: np.Description,
		ImageURL:    np.ImageURL,
		Available:   true,
	}
	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO products (id, name, price, description, image_url, available) VALUES ($1, $2, $3, $4, $5, TRUE) RETURNING created_at`,
		p.ID, p.Name, p.Price, p.Description, p.ImageURL,
	).Scan(&p.CreatedAt)
	if err != nil {
		return model.Product{}, errors.Wrap(err, "insert product")
	}
	return p, nil
}

func (s *PostgresStore) GetProduct(ctx context.Context, id string) (model.Product, error) {
	var p model.Product
	err := s.DB.GetContext(ctx, &p, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Product{}, model.ErrNotFound
	}
	if err != nil {
		return model.Product{}, errors.Wrapf(err, "select product %s", id)
	}
	return p, nil
}

// ListProducts returns every product, newest first. seq breaks ties between
// rows created within the same clock tick.
func (s *PostgresStore) ListProducts(ctx context.Context) ([]model.Product, error) {
	out := []model.Product{}
	if err := s.DB.SelectContext(ctx, &out, `SELECT `+productColumns+` FROM products ORDER BY created_at DESC, seq DESC`); err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return out, nil
}
