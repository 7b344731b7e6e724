package store

import "time"

// ReportRecord is the index row kept for every stored report
type ReportRecord struct {
	ReportID        string
	StorageKey      string
	SourceFile      string
	Status          string
	Score           int
	TotalViolations int
	BySeverity      map[string]int
	GeneratedAt     time.Time
}
