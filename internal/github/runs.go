package github

import "time"

// WorkflowRun represents a GitHub Actions workflow run.
type WorkflowRun struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	DisplayTitle string    `json:"display_title"`
	Status       string    `json:"status"`     // completed, in_progress, queued
	Conclusion   string    `json:"conclusion"` // success, failure, cancelled, skipped
	HTMLURL      string    `json:"html_url"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RunRef identifies a run whose logs can be requested.
type RunRef struct {
	ID           int64  `json:"id"`
	DisplayTitle string `json:"display_title"`
}

// RunsSummary lists runs and counts them by outcome.
type RunsSummary struct {
	Runs       []RunRef `json:"storeIds"`
	TotalCount int      `json:"total_count"`
	Success    int      `json:"success"`
	Failure    int      `json:"failure"`
	InProgress int      `json:"Progress"`
	Cancelled  int      `json:"Cancel"`
}

// Summarize counts runs by outcome. Completed runs are counted by conclusion;
// queued runs and other conclusions are listed but not counted.
func Summarize(runs []WorkflowRun) *RunsSummary {
	summary := &RunsSummary{Runs: make([]RunRef, 0, len(runs))}
	for _, run := range runs {
		summary.Runs = append(summary.Runs, RunRef{ID: run.ID, DisplayTitle: run.DisplayTitle})

		switch run.Status {
		case "completed":
			switch run.Conclusion {
			case "success":
				summary.Success++
			case "failure":
				summary.Failure++
			case "cancelled":
				summary.Cancelled++
			}
		case "in_progress":
			summary.InProgress++
		}
	}
	return summary
}
