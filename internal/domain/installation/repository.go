package installation

import "context"

// Repository defines read access to the entity inventory. Task status
// mutation happens in the checklist screens, not here.
type Repository interface {
	// ListWithTasks returns all installations with their child tasks loaded.
	ListWithTasks(ctx context.Context) ([]*Installation, error)
	GetByID(ctx context.Context, id int64) (*Installation, error)
}
