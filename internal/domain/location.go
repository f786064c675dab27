package domain

// Geographic point (latitude, longitude) as exchanged with the delivery backend.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}
