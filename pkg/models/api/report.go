package api

type ReportListItem struct {
	ReportID        string         `json:"report_id"`
	GeneratedAt     string         `json:"generated_at"`
	SourceFile      string         `json:"source_file"`
	Status          string         `json:"status"`
	Score           int            `json:"score"`
	TotalViolations int            `json:"total_violations"`
	BySeverity      map[string]int `json:"by_severity"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

