package Server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BaseW/MyGitHubNotification/AuthorizeCommand"
	"github.com/BaseW/MyGitHubNotification/Config"
	"github.com/BaseW/MyGitHubNotification/Models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
)

const (
	healthCheckHTML = "<h1>HealthCheck OK</h1>"
	healthCheckText = "HealthCheck OK"
	helpText        = "Usage: /mygithub <help|health-check|create-notification>\n" +
		"• help: show this message\n" +
		"• health-check: check that the server is up\n" +
		"• create-notification: post your open assigned GitHub issues to the channel"

	defaultRunsLimit = 20
	maxRunsLimit     = 100
)

type Notifier interface {
	CreateNotification(ctx context.Context, trigger string) Models.NotificationRun
}

type RunLister interface {
	GetRecentNotificationRuns(ctx context.Context, limit int) ([]Models.NotificationRun, error)
}

type Handler struct {
	slashCommandToken string
	pipelineTimeout   time.Duration
	notifier          Notifier
	runLister         RunLister
	logger            zerolog.Logger

	pipelines sync.WaitGroup
}

// NewHandler builds the slash command handler. runLister may be nil when no
// run history is kept.
func NewHandler(cfg Config.Config, logger zerolog.Logger, notifier Notifier, runLister RunLister) *Handler {
	return &Handler{
		slashCommandToken: cfg.SlackSlashCommandToken,
		pipelineTimeout:   cfg.PipelineTimeout,
		notifier:          notifier,
		runLister:         runLister,
		logger:            logger,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(accessLog(h.logger))

	r.Get("/", h.HealthCheck)
	r.Get("/health", h.HealthCheck)
	r.Post("/create-notification", h.CreateNotification)
	r.With(h.requireSlashCommandToken).Get("/notification-runs", h.GetNotificationRuns)

	return r
}

// Wait blocks until every notification started by the handler has finished.
func (h *Handler) Wait() {
	h.pipelines.Wait()
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(healthCheckHTML))
}

func (h *Handler) CreateNotification(w http.ResponseWriter, r *http.Request) {
	payload, parseError := parseSlashCommand(r)
	if parseError != nil {
		h.logger.Warn().Err(parseError).Msg("Server:CreateNotification#Error while parsing the request body")
		respondText(w, http.StatusBadRequest, "invalid request body")
		return
	}

	request, authorizeError := AuthorizeCommand.Authorize(payload, h.slashCommandToken)
	if authorizeError != nil {
		var authError *AuthorizeCommand.AuthError
		code := "unknown"
		if errors.As(authorizeError, &authError) {
			code = authError.Kind.Code()
		}
		h.logger.Warn().
			Str("code", code).
			Str("command", payload.Command).
			Str("user_id", payload.UserID).
			Msg("slash command rejected")
		respondText(w, http.StatusBadRequest, authorizeError.Error())
		return
	}

	h.logger.Info().
		Str("command", request.Command).
		Str("text", request.Text).
		Str("user_id", payload.UserID).
		Msg("slash command accepted")

	switch request.Text {
	case AuthorizeCommand.TextHelp:
		respondJSON(w, http.StatusOK, slack.Msg{ResponseType: slack.ResponseTypeEphemeral, Text: helpText})
	case AuthorizeCommand.TextHealthCheck:
		respondJSON(w, http.StatusOK, slack.Msg{ResponseType: slack.ResponseTypeEphemeral, Text: healthCheckText})
	case AuthorizeCommand.TextCreateNotification:
		h.startNotification()
		respondText(w, http.StatusOK, "ok")
	}
}

// startNotification runs the pipeline detached from the request so the slash
// command is answered within Slack's reply window.
func (h *Handler) startNotification() {
	h.pipelines.Add(1)
	go func() {
		defer h.pipelines.Done()

		ctx, cancel := context.WithTimeout(context.Background(), h.pipelineTimeout)
		defer cancel()

		run := h.notifier.CreateNotification(ctx, Models.TriggerSlashCommand)
		h.logger.Info().
			Bool("delivered", run.Delivered).
			Int("issues", run.IssueCount).
			Msg("slash command notification finished")
	}()
}

// requireSlashCommandToken only lets through requests carrying the slash
// command token as "Authorization: Bearer <token>".
func (h *Handler) requireSlashCommandToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !found || h.slashCommandToken == "" ||
			subtle.ConstantTimeCompare([]byte(token), []byte(h.slashCommandToken)) != 1 {
			w.Header().Set("WWW-Authenticate", "Bearer")
			respondText(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) GetNotificationRuns(w http.ResponseWriter, r *http.Request) {
	if h.runLister == nil {
		respondText(w, http.StatusNotFound, "notification run history is disabled")
		return
	}

	limit := defaultRunsLimit
	if rawLimit := r.URL.Query().Get("limit"); rawLimit != "" {
		parsed, parseError := strconv.Atoi(rawLimit)
		if parseError != nil || parsed <= 0 {
			respondText(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(parsed, maxRunsLimit)
	}

	runs, getRunsError := h.runLister.GetRecentNotificationRuns(r.Context(), limit)
	if getRunsError != nil {
		h.logger.Error().Err(getRunsError).Msg("Server:GetNotificationRuns#Error while reading the notification runs")
		respondText(w, http.StatusInternalServerError, "internal error")
		return
	}

	respondJSON(w, http.StatusOK, runs)
}

type slashCommandRequest struct {
	Token       string `json:"token"`
	TeamID      string `json:"team_id"`
	TeamDomain  string `json:"team_domain"`
	ChannelID   string `json:"channel_id"`
	ChannelName string `json:"channel_name"`
	UserID      string `json:"user_id"`
	UserName    string `json:"user_name"`
	Command     string `json:"command"`
	Text        string `json:"text"`
	ResponseURL string `json:"response_url"`
}

func (s slashCommandRequest) toSlashCommand() slack.SlashCommand {
	return slack.SlashCommand{
		Token:       s.Token,
		TeamID:      s.TeamID,
		TeamDomain:  s.TeamDomain,
		ChannelID:   s.ChannelID,
		ChannelName: s.ChannelName,
		UserID:      s.UserID,
		UserName:    s.UserName,
		Command:     s.Command,
		Text:        s.Text,
		ResponseURL: s.ResponseURL,
	}
}

// parseSlashCommand accepts the form body Slack sends as well as a JSON body
// with the same field names.
func parseSlashCommand(r *http.Request) (slack.SlashCommand, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" {
		return slack.SlashCommandParse(r)
	}

	var req slashCommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return slack.SlashCommand{}, err
	}
	return req.toSlashCommand(), nil
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondText(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(text))
}

func accessLog(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info().
					Str("request_id", middleware.GetReqID(r.Context())).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Str("remote_addr", r.RemoteAddr).
					Str("user_agent", r.UserAgent()).
					Int("status", ww.Status()).
					Int("bytes", ww.BytesWritten()).
					Dur("duration", time.Since(start)).
					Msg("request")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
