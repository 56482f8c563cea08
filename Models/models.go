package Models

import "time"

type Label struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Repository struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	HTMLURL string `json:"html_url"`
}

type Issue struct {
	ID      int64   `json:"id"`
	Title   string  `json:"title"`
	HTMLURL string  `json:"html_url"`
	State   string  `json:"state"`
	Body    *string `json:"body,omitempty"`
	// nil Labels means the issue carries no labels, it is not an error
	Labels      []Label    `json:"labels,omitempty"`
	Repository  Repository `json:"repository"`
	LabelString *string    `json:"label_string,omitempty"`
}

// SortedIssues holds every fetched issue in exactly one bucket,
// keeping the order the API returned them in.
type SortedIssues struct {
	PriorityHighIssues   []Issue
	PriorityMediumIssues []Issue
	PriorityLowIssues    []Issue
	PriorityNoneIssues   []Issue
}

func (s SortedIssues) Count() int {
	return len(s.PriorityHighIssues) + len(s.PriorityMediumIssues) + len(s.PriorityLowIssues) + len(s.PriorityNoneIssues)
}

type AuthorizedRequest struct {
	Command string
	Text    string
}

const (
	TriggerSlashCommand = "slash-command"
	TriggerCLI          = "cli"
	TriggerSchedule     = "schedule"
)

type NotificationRun struct {
	ID            int64     `json:"id,omitempty"`
	Trigger       string    `json:"trigger"`
	IssueCount    int       `json:"issue_count"`
	FetchError    string    `json:"fetch_error,omitempty"`
	DeliveryError string    `json:"delivery_error,omitempty"`
	Delivered     bool      `json:"delivered"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
}
