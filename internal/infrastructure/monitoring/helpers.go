package monitoring

// Summary is a compact JSON view of the collector for the health endpoint.
// Full series live on the Prometheus /metrics endpoint.
type Summary struct {
	UptimeSeconds     float64 `json:"uptimeSeconds"`
	TotalRequests     int64   `json:"totalRequests"`
	TotalErrors       int64   `json:"totalErrors"`
	AvgRequestSeconds float64 `json:"avgRequestSeconds"`
	TotalExtractions  int64   `json:"totalExtractions"`
	AvgConfidence     float64 `json:"avgConfidence"`
	TotalRetries      int64   `json:"totalRetries"`
	TotalRuns         int64   `json:"totalRuns"`
}

// Summarize builds a Summary from the current snapshot.
func (m *Metrics) Summarize() Summary {
	snap := m.Snapshot()

	var avgReq float64
	if snap.RequestCount > 0 {
		avgReq = snap.TotalDuration / float64(snap.RequestCount)
	}

	return Summary{
		UptimeSeconds:     m.UptimeSeconds(),
		TotalRequests:     snap.TotalRequests,
		TotalErrors:       snap.TotalErrors,
		AvgRequestSeconds: avgReq,
		TotalExtractions:  snap.TotalExtractions,
		AvgConfidence:     m.AverageConfidence(),
		TotalRetries:      snap.TotalRetries,
		TotalRuns:         snap.TotalRuns,
	}
}
