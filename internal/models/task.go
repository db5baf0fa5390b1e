package models

// RouteTask represents a routing task: a pair of endpoints waiting for a traced route.
type RouteTask struct {
	ID          int    // ID is the unique identifier for the task.
	Origin      string // Origin is an address or a "lat,lng" literal.
	Destination string // Destination is an address or a "lat,lng" literal.
}
