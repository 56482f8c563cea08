package PublishToSlack

import (
	"fmt"
	"strings"

	"github.com/BaseW/MyGitHubNotification/Models"

	"github.com/slack-go/slack"
)

type Issue = Models.Issue
type SortedIssues = Models.SortedIssues

const (
	ChannelMention = "<!channel>\n"
	HeaderTitle    = "Issues"

	PriorityHighHeader   = "*Priority: High*"
	PriorityMediumHeader = "*Priority: Medium*"
	PriorityLowHeader    = "*Priority: Low*"
	PriorityNoneHeader   = "*Priority: None*"
)

func newPayload() slack.HomeTabViewRequest {
	return slack.HomeTabViewRequest{
		Type:   slack.VTHomeTab,
		Blocks: slack.Blocks{BlockSet: []slack.Block{}},
	}
}

// text objects are built literally so only type and text go on the wire,
// NewTextBlockObject always sets "emoji"
func addHeaderBlock(payload *slack.HomeTabViewRequest, text string) {
	textBlock := &slack.TextBlockObject{Type: slack.PlainTextType, Text: text}
	payload.Blocks.BlockSet = append(payload.Blocks.BlockSet, slack.NewHeaderBlock(textBlock))
}

func addTextBlock(payload *slack.HomeTabViewRequest, text string) {
	textBlock := &slack.TextBlockObject{Type: slack.MarkdownType, Text: text}
	payload.Blocks.BlockSet = append(payload.Blocks.BlockSet, slack.NewSectionBlock(textBlock, nil, nil))
}

func generateTextForIssue(issue Issue) string {
	var labelNames strings.Builder
	for _, label := range issue.Labels {
		labelNames.WriteString(label.Name)
		labelNames.WriteString(" ")
	}
	return fmt.Sprintf("- <%s|%s>(<%s|%s>): %s\n",
		issue.HTMLURL, issue.Title, issue.Repository.HTMLURL, issue.Repository.Name, labelNames.String())
}

func generateTextWithHeader(header string, issues []Issue) string {
	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n")
	for _, issue := range issues {
		b.WriteString(generateTextForIssue(issue))
	}
	return b.String()
}

// CreatePayload renders the sorted issues as a block message. When fetching
// the issues failed the message is a single section carrying the error text.
func CreatePayload(issues SortedIssues, fetchIssuesError error) slack.HomeTabViewRequest {
	payload := newPayload()

	if fetchIssuesError != nil {
		addTextBlock(&payload, fetchIssuesError.Error())
		return payload
	}

	// add mention to the channel
	addTextBlock(&payload, ChannelMention)
	addHeaderBlock(&payload, HeaderTitle)

	priorityBuckets := []struct {
		header string
		issues []Issue
	}{
		{header: PriorityHighHeader, issues: issues.PriorityHighIssues},
		{header: PriorityMediumHeader, issues: issues.PriorityMediumIssues},
		{header: PriorityLowHeader, issues: issues.PriorityLowIssues},
		{header: PriorityNoneHeader, issues: issues.PriorityNoneIssues},
	}
	for _, bucket := range priorityBuckets {
		if len(bucket.issues) == 0 {
			continue
		}
		addTextBlock(&payload, generateTextWithHeader(bucket.header, bucket.issues))
	}

	return payload
}
