package storage

// TransformRepository defines the operations the HTTP surface needs for
// transformation history.
type TransformRepository interface {
	// Create operations
	Insert(t *Transform) (int64, error)

	// Read operations
	GetByID(id int64) (*Transform, error)
	GetRecent(limit int) ([]Transform, error)
	Count() (int, error)

	// Delete operations
	Delete(id int64) error
}
