package GetIssues

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/BaseW/MyGitHubNotification/Models"

	"github.com/google/go-github/v72/github"
)

type Issue = Models.Issue
type Label = Models.Label
type Repository = Models.Repository

const (
	DefaultBaseURL = "https://api.github.com"
	userAgent      = "github-notification"
	acceptHeader   = "application/vnd.github+json"
	issuesPath     = "issues?filter=assigned&state=open"
)

type FetchErrorKind int

const (
	Transport FetchErrorKind = iota + 1
	BadStatus
	ParseFailure
)

type FetchError struct {
	Kind FetchErrorKind
	// only set for BadStatus
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case Transport:
		return fmt.Sprintf("Fetch Issues Error: %v", e.Err)
	case BadStatus:
		return fmt.Sprintf("status code is not 200: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	case ParseFailure:
		return fmt.Sprintf("Parse Issues Error: %v", e.Err)
	default:
		return "Fetch Issues Error"
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func (e *FetchError) Is(target error) bool {
	t, ok := target.(*FetchError)
	return ok && t.Kind == e.Kind
}

var (
	ErrTransport    error = &FetchError{Kind: Transport}
	ErrBadStatus    error = &FetchError{Kind: BadStatus}
	ErrParseFailure error = &FetchError{Kind: ParseFailure}
)

type Client struct {
	github *github.Client
}

func NewClient(baseURL string, token string, httpClient *http.Client) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	// go-github resolves relative paths, the base must end with a slash
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	parsedBaseURL, urlParseError := url.Parse(baseURL)
	if urlParseError != nil {
		return nil, fmt.Errorf("parse github api url: %w", urlParseError)
	}

	githubClient := github.NewClient(httpClient).WithAuthToken(token)
	githubClient.BaseURL = parsedBaseURL
	githubClient.UserAgent = userAgent

	return &Client{github: githubClient}, nil
}

// GetMyIssues returns the open issues assigned to the token's user, in the
// order the API returned them.
func GetMyIssues(ctx context.Context, client *Client) ([]Issue, error) {
	// GET /issues?filter=assigned&state=open
	request, newRequestError := client.github.NewRequest(http.MethodGet, issuesPath, nil)
	if newRequestError != nil {
		return nil, &FetchError{Kind: Transport, Err: newRequestError}
	}
	request.Header.Set("Accept", acceptHeader)

	var githubIssues []*github.Issue
	response, listIssuesError := client.github.Do(ctx, request, &githubIssues)

	// without a response the request never reached the API
	if response == nil || response.Response == nil {
		if listIssuesError == nil {
			listIssuesError = errors.New("empty response")
		}
		return nil, &FetchError{Kind: Transport, Err: listIssuesError}
	}

	if response.StatusCode != http.StatusOK {
		return nil, &FetchError{Kind: BadStatus, StatusCode: response.StatusCode, Err: listIssuesError}
	}

	if listIssuesError != nil {
		return nil, &FetchError{Kind: ParseFailure, Err: listIssuesError}
	}

	issues := make([]Issue, 0, len(githubIssues))
	for _, githubIssue := range githubIssues {
		issues = append(issues, toIssue(githubIssue))
	}
	return issues, nil
}

func toIssue(githubIssue *github.Issue) Issue {
	githubRepository := githubIssue.GetRepository()
	issue := Issue{
		ID:      githubIssue.GetID(),
		Title:   githubIssue.GetTitle(),
		HTMLURL: githubIssue.GetHTMLURL(),
		State:   githubIssue.GetState(),
		Body:    githubIssue.Body,
		Repository: Repository{
			ID:      githubRepository.GetID(),
			Name:    githubRepository.GetName(),
			HTMLURL: githubRepository.GetHTMLURL(),
		},
	}

	if len(githubIssue.Labels) == 0 {
		return issue
	}

	labelNames := make([]string, 0, len(githubIssue.Labels))
	issue.Labels = make([]Label, 0, len(githubIssue.Labels))
	for _, githubLabel := range githubIssue.Labels {
		issue.Labels = append(issue.Labels, Label{
			ID:   githubLabel.GetID(),
			Name: githubLabel.GetName(),
		})
		labelNames = append(labelNames, githubLabel.GetName())
	}
	labelString := strings.Join(labelNames, " ")
	issue.LabelString = &labelString

	return issue
}
