package repository

import (
	"context"
	"fmt"

	"github.com/UnknownOlympus/pathway/internal/models"
)

// FetchTasksForRouting retrieves a list of tasks that still need a route.
// It returns tasks that have no polyline, are not closed, have fewer than 5 routing attempts,
// and have both endpoints set. The results are ordered by creation date and limited to the specified count.
//
// Parameters:
// - ctx: The context for the operation, allowing for cancellation and timeout.
// - limit: The maximum number of tasks to retrieve.
//
// Returns:
// - A slice of models.RouteTask containing the tasks that match the criteria.
// - An error if the query fails or if there is an issue scanning the results.
func (r *Repository) FetchTasksForRouting(ctx context.Context, limit int) ([]models.RouteTask, error) {
	var tasks []models.RouteTask
	query := `
		SELECT task_id, origin, destination
		FROM public.route_tasks
		WHERE
			polyline IS NULL
			AND is_closed = false
			AND routing_attempts < 5
			AND origin <> ''
			AND destination <> ''
		ORDER BY created_at ASC
		LIMIT $1;
	`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending route tasks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var task models.RouteTask
		if errScan := rows.Scan(&task.ID, &task.Origin, &task.Destination); errScan != nil {
			return nil, fmt.Errorf("failed to scan pending route task: %w", errScan)
		}
		r.log.DebugContext(ctx, "A new route task has been received.",
			"ID", task.ID, "origin", task.Origin, "destination", task.Destination)
		tasks = append(tasks, task)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read row: %w", err)
	}

	return tasks, nil
}

// SaveRoute stores the encoded polyline, distance and number of points of a task identified by taskID.
// It sets the routing_error field to NULL. It returns an error if the update fails.
func (r *Repository) SaveRoute(ctx context.Context, taskID int, route models.Route) error {
	query := `
		UPDATE route_tasks
		SET
			polyline = $1,
			distance_meters = $2,
			point_count = $3,
			routing_error = NULL
		WHERE
			task_id = $4;
	`

	_, err := r.db.Exec(ctx, query, route.Polyline, route.DistanceMeters, len(route.Path), taskID)
	if err != nil {
		return fmt.Errorf("failed to save task route: %w", err)
	}

	return nil
}

// IncrementFailureCount increments the routing attempt count for a specific task
// identified by taskID and updates the associated error message. It takes a context
// for managing request-scoped values, cancellation, and deadlines. If the update
// operation fails, it returns an error with additional context.
func (r *Repository) IncrementFailureCount(ctx context.Context, taskID int, errMsg string) error {
	query := `
		UPDATE route_tasks
		SET
			routing_attempts = routing_attempts + 1,
			routing_error = $1
		WHERE task_id = $2;
	`

	_, err := r.db.Exec(ctx, query, errMsg, taskID)
	if err != nil {
		return fmt.Errorf("failed to update routing error and number of attempts: %w", err)
	}

	return nil
}
