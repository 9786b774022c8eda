package models

import "time"

// SystemMetrics is a lightweight snapshot of the process counters.
type SystemMetrics struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	Generations              uint64    `json:"generations"`
	AverageGenerationMs      float64   `json:"average_generation_ms"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	ReplayConflicts          uint64    `json:"replay_conflicts"`
	ExpiredModifications     uint64    `json:"expired_modifications"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
