package SortIssues

import (
	"github.com/BaseW/MyGitHubNotification/Models"
)

type Issue = Models.Issue
type SortedIssues = Models.SortedIssues

const (
	PriorityHighLabel   = "Priority: High"
	PriorityMediumLabel = "Priority: Medium"
	PriorityLowLabel    = "Priority: Low"
)

// SortIssues puts every issue into exactly one priority bucket. The first
// matching priority wins in High, Medium, Low order and issues without a
// priority label go to None. Input order is kept inside each bucket.
func SortIssues(issues []Issue) SortedIssues {
	var sortedIssues SortedIssues

	for _, issue := range issues {
		switch {
		case hasLabel(issue, PriorityHighLabel):
			sortedIssues.PriorityHighIssues = append(sortedIssues.PriorityHighIssues, issue)
		case hasLabel(issue, PriorityMediumLabel):
			sortedIssues.PriorityMediumIssues = append(sortedIssues.PriorityMediumIssues, issue)
		case hasLabel(issue, PriorityLowLabel):
			sortedIssues.PriorityLowIssues = append(sortedIssues.PriorityLowIssues, issue)
		default:
			sortedIssues.PriorityNoneIssues = append(sortedIssues.PriorityNoneIssues, issue)
		}
	}

	return sortedIssues
}

func hasLabel(issue Issue, name string) bool {
	for _, label := range issue.Labels {
		if label.Name == name {
			return true
		}
	}
	return false
}
