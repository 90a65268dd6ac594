package sqlite

import (
	"database/sql"
	"fmt"

	"ghibli-stylizer/internal/storage"
)

// TransformRepository implements storage.TransformRepository for SQLite.
type TransformRepository struct {
	db *DB
}

// NewTransformRepository creates a new SQLite transform repository.
func NewTransformRepository(db *DB) *TransformRepository {
	return &TransformRepository{db: db}
}

// Insert adds a new transform record to the database.
func (r *TransformRepository) Insert(t *storage.Transform) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT INTO transforms (original_name, original_path, transformed_path, level, width, height, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, t.OriginalName, t.OriginalPath, t.TransformedPath, t.Level, t.Width, t.Height, t.DurationMs, t.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert transform: %w", err)
	}

	return result.LastInsertId()
}

// GetByID retrieves a transform by its ID.
func (r *TransformRepository) GetByID(id int64) (*storage.Transform, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var t storage.Transform
	err := r.db.Conn().QueryRow(`
		SELECT id, original_name, original_path, transformed_path, level, width, height, duration_ms, created_at
		FROM transforms WHERE id = ?
	`, id).Scan(&t.ID, &t.OriginalName, &t.OriginalPath, &t.TransformedPath, &t.Level,
		&t.Width, &t.Height, &t.DurationMs, &t.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transform: %w", err)
	}
	return &t, nil
}

// GetRecent retrieves the most recent transforms, newest first.
func (r *TransformRepository) GetRecent(limit int) ([]storage.Transform, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query := `
		SELECT id, original_name, original_path, transformed_path, level, width, height, duration_ms, created_at
		FROM transforms
		ORDER BY created_at DESC, id DESC
	`
	args := []interface{}{}

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transforms: %w", err)
	}
	defer rows.Close()

	var transforms []storage.Transform
	for rows.Next() {
		var t storage.Transform
		if err := rows.Scan(&t.ID, &t.OriginalName, &t.OriginalPath, &t.TransformedPath, &t.Level,
			&t.Width, &t.Height, &t.DurationMs, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transform: %w", err)
		}
		transforms = append(transforms, t)
	}

	return transforms, rows.Err()
}

// Count returns the total number of stored transforms.
func (r *TransformRepository) Count() (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM transforms`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count transforms: %w", err)
	}
	return count, nil
}

// Delete removes a transform by its ID.
func (r *TransformRepository) Delete(id int64) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM transforms WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete transform: %w", err)
	}
	return nil
}
