package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/menuchat/internal/domain/catalog"
)

const (
	listCategoriesSQL = `SELECT name FROM menu_categories ORDER BY position, name`

	listItemsSQL = `SELECT category, id, name, price, calories, popular, tags
		FROM menu_items ORDER BY position, id`

	deleteCategoriesSQL = `DELETE FROM menu_categories`

	insertCategorySQL = `INSERT INTO menu_categories (name, position) VALUES ($1, $2)`

	insertItemSQL = `INSERT INTO menu_items (id, category, position, name, price, calories, popular, tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
)

var _ catalog.Source = (*CatalogRepository)(nil)

// CatalogRepository reads and replaces the menu stored in PostgreSQL.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// Load returns the stored categories ordered by position. Categories without
// items are kept.
func (r *CatalogRepository) Load(ctx context.Context) ([]catalog.Category, error) {
	rows, err := r.pool.Query(ctx, listCategoriesSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list categories")
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, errors.Wrap(err, "scan categories")
	}

	rows, err = r.pool.Query(ctx, listItemsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list items")
	}
	items, err := pgx.CollectRows(rows, scanItem)
	if err != nil {
		return nil, errors.Wrap(err, "scan items")
	}

	categories := make([]catalog.Category, len(names))
	index := make(map[string]int, len(names))
	for i, name := range names {
		categories[i] = catalog.Category{Name: name}
		index[name] = i
	}
	for _, item := range items {
		i, ok := index[item.Category]
		if !ok {
			return nil, errors.Errorf("item %q references unknown category %q", item.ID, item.Category)
		}
		categories[i].Items = append(categories[i].Items, item)
	}
	return categories, nil
}

// Replace deletes the stored menu and writes categories in a single
// transaction, keeping their order.
func (r *CatalogRepository) Replace(ctx context.Context, categories []catalog.Category) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, deleteCategoriesSQL); err != nil {
			return errors.Wrap(err, "delete menu")
		}

		batch := &pgx.Batch{}
		for ci, c := range categories {
			batch.Queue(insertCategorySQL, c.Name, ci)
			for ii, item := range c.Items {
				tags := item.Tags
				if tags == nil {
					tags = []string{}
				}
				batch.Queue(insertItemSQL,
					item.ID, c.Name, ii, item.Name, item.Price, item.Calories, item.Popular, tags,
				)
			}
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return errors.Wrap(err, "insert menu")
		}
		return nil
	})
}

func scanItem(row pgx.CollectableRow) (catalog.Item, error) {
	var item catalog.Item
	err := row.Scan(
		&item.Category, &item.ID, &item.Name, &item.Price,
		&item.Calories, &item.Popular, &item.Tags,
	)
	return item, err
}
