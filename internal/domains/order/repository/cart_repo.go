package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"sokoni-backend/internal/domains/order/model"
)

// =====================================================
// CART REPOSITORY IMPLEMENTATION
// =====================================================
type cartRepository struct {
	pool *pgxpool.Pool
}

func NewCartRepository(pool *pgxpool.Pool) CartRepoInterface {
	return &cartRepository{pool: pool}
}

// AddItem adds an item to the user's cart. Same-named items merge by
// bumping the quantity.
func (r *cartRepository) AddItem(ctx context.Context, item *model.CartItem) error {
	query := `
		INSERT INTO cart_items (id, user_id, name, quantity, price)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, name)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity,
			price = EXCLUDED.price
		RETURNING id, created_at
	`

	err := r.pool.QueryRow(ctx, query,
		item.ID,
		item.UserID,
		item.Name,
		item.Quantity,
		item.Price,
	).Scan(&item.ID, &item.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to add cart item: %w", err)
	}
	return nil
}

// ListByUserID lists the user's cart items
func (r *cartRepository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*model.CartItem, error) {
	query := `
		SELECT id, user_id, name, quantity, price, created_at
		FROM cart_items
		WHERE user_id = $1
		ORDER BY created_at
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cart items: %w", err)
	}
	defer rows.Close()

	var items []*model.CartItem
	for rows.Next() {
		item := &model.CartItem{}
		if err := rows.Scan(&item.ID, &item.UserID, &item.Name, &item.Quantity, &item.Price, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

// Clear removes all of the user's cart items
func (r *cartRepository) Clear(ctx context.Context, userID uuid.UUID) (int, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear cart: %w", err)
	}
	return int(result.RowsAffected()), nil
}
