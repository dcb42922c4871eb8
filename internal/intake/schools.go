// internal/intake/schools.go
package intake

import (
	"context"
	"errors"
	"fmt"

	"recruit-intake/internal/common/logger"
	"recruit-intake/internal/models"
)

// SchoolResolver maps a school name to its id, creating the school on first
// sight. Location hints are only used on creation.
type SchoolResolver struct {
	store  Store
	logger logger.Logger
}

func NewSchoolResolver(store Store, log logger.Logger) *SchoolResolver {
	return &SchoolResolver{
		store:  store,
		logger: log.WithFields(map[string]interface{}{"component": "school-resolver"}),
	}
}

// Resolve returns the school id for name and whether it was created.
func (r *SchoolResolver) Resolve(ctx context.Context, name string, loc models.Location) (string, bool, error) {
	id, err := r.store.FindSchoolIDByName(ctx, name)
	if err == nil {
		return id, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", false, fmt.Errorf("failed to look up school: %w", err)
	}

	id, err = r.store.InsertSchool(ctx, name, loc)
	if err == nil {
		r.logger.Info("created school", map[string]interface{}{
			"schoolId":   id,
			"schoolName": name,
		})
		return id, true, nil
	}

	// Lost a race with a concurrent insert of the same name.
	if errors.Is(err, ErrConflict) {
		id, findErr := r.store.FindSchoolIDByName(ctx, name)
		if findErr == nil {
			r.logger.Debug("school created concurrently", map[string]interface{}{
				"schoolId":   id,
				"schoolName": name,
			})
			return id, false, nil
		}
		err = findErr
	}

	return "", false, fmt.Errorf("failed to create school: %w", err)
}
