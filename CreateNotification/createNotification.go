package CreateNotification

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/BaseW/MyGitHubNotification/Config"
	"github.com/BaseW/MyGitHubNotification/GetIssues"
	"github.com/BaseW/MyGitHubNotification/Models"
	"github.com/BaseW/MyGitHubNotification/PublishToSlack"
	"github.com/BaseW/MyGitHubNotification/SortIssues"

	"github.com/rs/zerolog"
)

type NotificationRun = Models.NotificationRun

const saveRunTimeout = 5 * time.Second

type RunRecorder interface {
	SaveNotificationRun(ctx context.Context, run NotificationRun) (NotificationRun, error)
}

type Notifier struct {
	issuesClient *GetIssues.Client
	httpClient   *http.Client
	webhookURL   string
	runRecorder  RunRecorder
	logger       zerolog.Logger
	now          func() time.Time
}

// New wires the fetch, sort, render and deliver stages. runRecorder may be nil
// when no run history is kept.
func New(cfg Config.Config, logger zerolog.Logger, runRecorder RunRecorder) (*Notifier, error) {
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	issuesClient, newClientError := GetIssues.NewClient(cfg.GitHubAPIURL, cfg.GitHubToken, httpClient)
	if newClientError != nil {
		return nil, fmt.Errorf("create github client: %w", newClientError)
	}

	return &Notifier{
		issuesClient: issuesClient,
		httpClient:   httpClient,
		webhookURL:   cfg.SlackWebhookURL,
		runRecorder:  runRecorder,
		logger:       logger,
		now:          time.Now,
	}, nil
}

// CreateNotification runs the whole pipeline once. A failed fetch still
// produces a Slack message with the error text; a failed delivery is only
// logged and reported in the returned run.
func (n *Notifier) CreateNotification(ctx context.Context, trigger string) NotificationRun {
	run := NotificationRun{
		Trigger:   trigger,
		StartedAt: n.now().UTC(),
	}
	logger := n.logger.With().Str("trigger", trigger).Logger()

	// GET the open issues assigned to the user
	issues, getIssuesError := GetIssues.GetMyIssues(ctx, n.issuesClient)

	var sortedIssues Models.SortedIssues
	if getIssuesError != nil {
		logger.Error().Err(getIssuesError).Msg("CreateNotification:CreateNotification#Error while fetching the issues")
		run.FetchError = getIssuesError.Error()
	} else {
		logger.Info().Int("issues", len(issues)).Msg("Fetch Issues OK")
		sortedIssues = SortIssues.SortIssues(issues)
		run.IssueCount = sortedIssues.Count()
	}

	payload := PublishToSlack.CreatePayload(sortedIssues, getIssuesError)

	notifyError := PublishToSlack.NotifyBySlack(ctx, n.httpClient, n.webhookURL, payload)
	if notifyError != nil {
		logger.Error().Err(notifyError).Msg("CreateNotification:CreateNotification#Error while notifying by slack")
		run.DeliveryError = notifyError.Error()
	} else {
		logger.Info().Int("blocks", len(payload.Blocks.BlockSet)).Msg("Notify by Slack OK")
		run.Delivered = true
	}
	run.FinishedAt = n.now().UTC()

	if n.runRecorder == nil {
		return run
	}

	// the run is recorded even when the pipeline deadline already expired
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveRunTimeout)
	defer cancel()
	savedRun, saveRunError := n.runRecorder.SaveNotificationRun(saveCtx, run)
	if saveRunError != nil {
		logger.Error().Err(saveRunError).Msg("CreateNotification:CreateNotification#Error while saving the notification run")
		return run
	}
	return savedRun
}
