package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"ecommerce-backend/models"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// ListAdmins returns enabled users with the ADMIN role.
func (r *UserRepository) ListAdmins(ctx context.Context) ([]models.AdminUser, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, email FROM users WHERE role = ? AND is_enabled = TRUE ORDER BY id`,
		models.RoleAdmin,
	)
	if err != nil {
		return nil, fmt.Errorf("query admins: %w", err)
	}
	defer rows.Close()

	var admins []models.AdminUser
	for rows.Next() {
		var a models.AdminUser
		if err := rows.Scan(&a.ID, &a.Name, &a.Email); err != nil {
			return nil, fmt.Errorf("scan admin: %w", err)
		}
		admins = append(admins, a)
	}
	return admins, rows.Err()
}
