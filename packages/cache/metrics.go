package cache

// Metrics is a point-in-time view of pool performance. All fields are
// captured under the pool mutex, never torn.
type Metrics struct {
	Hits                  int64   `json:"hits"`
	Misses                int64   `json:"misses"`
	Evictions             int64   `json:"evictions"`
	Size                  int     `json:"size"`
	MaxSize               int     `json:"max_size"`
	HitRatio              float64 `json:"hit_ratio"`
	TotalConnections      int64   `json:"total_connections"`
	FailedConnections     int64   `json:"failed_connections"`
	AvgConnectionLifetime float64 `json:"avg_connection_lifetime"` // seconds
}

// hitRatio derives the ratio without mutating counters.
func (m *Metrics) hitRatio() float64 {
	total := m.Hits + m.Misses
	if total == 0 {
		return 0
	}
	return float64(m.Hits) / float64(total)
}
