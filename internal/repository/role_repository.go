package repository

import (
	"context"
	"database/sql"

	"github.com/memflow/lowcode-backend/internal/model"
)

// RoleRepo reads the static role table.
type RoleRepo struct{ DB *sql.DB }

func NewRoleRepo(db *sql.DB) *RoleRepo { return &RoleRepo{DB: db} }

// List returns all roles ordered by ordinal.
func (r *RoleRepo) List(ctx context.Context) ([]model.RoleRecord, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT id,name FROM roles ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.RoleRecord
	for rows.Next() {
		var rec model.RoleRecord
		if err := rows.Scan(&rec.ID, &rec.Name); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
