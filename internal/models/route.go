package models

// Route is a traced route between two endpoints.
type Route struct {
	Polyline       string  // Polyline is the encoded overview path.
	Path           Path    // Path is the decoded overview path.
	DistanceMeters float64 // DistanceMeters is the route length reported by the provider or computed from Path.
}

// Bounds is the bounding box of a path, given by its south-west and north-east corners.
type Bounds struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}
