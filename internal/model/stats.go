package model

// RootStats is a point-in-time snapshot of one watch root's router counters.
type RootStats struct {
	Root      string `json:"root"`
	Accepted  int64  `json:"accepted"`
	Rejected  int64  `json:"rejected"`
	Succeeded int64  `json:"succeeded"`
	Failed    int64  `json:"failed"`
	InFlight  int    `json:"in_flight"`
	Processed int    `json:"processed"`
}
