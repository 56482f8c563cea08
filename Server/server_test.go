package Server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BaseW/MyGitHubNotification/Config"
	"github.com/BaseW/MyGitHubNotification/CreateNotification"
	"github.com/BaseW/MyGitHubNotification/Models"
	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSlashToken = "slash-token"

type fakeNotifier struct {
	mu       sync.Mutex
	triggers []string
}

func (f *fakeNotifier) CreateNotification(ctx context.Context, trigger string) Models.NotificationRun {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggers = append(f.triggers, trigger)
	return Models.NotificationRun{Trigger: trigger, Delivered: true}
}

func (f *fakeNotifier) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.triggers...)
}

type fakeRunLister struct {
	runs      []Models.NotificationRun
	err       error
	lastLimit int
}

func (f *fakeRunLister) GetRecentNotificationRuns(ctx context.Context, limit int) ([]Models.NotificationRun, error) {
	f.lastLimit = limit
	return f.runs, f.err
}

func testConfig() Config.Config {
	return Config.Config{
		SlackSlashCommandToken: testSlashToken,
		PipelineTimeout:        5 * time.Second,
		HTTPTimeout:            5 * time.Second,
	}
}

func jsonCommand(token, command, text string) string {
	body, _ := json.Marshal(map[string]string{
		"token":        token,
		"team_id":      "T1",
		"team_domain":  "example",
		"channel_id":   "C1",
		"channel_name": "general",
		"user_id":      "U1",
		"user_name":    "someone",
		"command":      command,
		"text":         text,
		"response_url": "https://hooks.slack.com/commands/1",
	})
	return string(body)
}

func postJSON(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/create-notification", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func postForm(t *testing.T, handler http.Handler, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/create-notification", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthCheck(t *testing.T) {
	h := NewHandler(testConfig(), zerolog.Nop(), &fakeNotifier{}, nil)

	for _, path := range []string{"/", "/health"} {
		rec := httptest.NewRecorder()
		h.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "<h1>HealthCheck OK</h1>", rec.Body.String(), path)
		assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	}
}

func TestCreateNotification_ShortCircuitTexts(t *testing.T) {
	tests := []struct {
		text     string
		wantText string
	}{
		{text: "help", wantText: helpText},
		{text: "health-check", wantText: "HealthCheck OK"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			notifier := &fakeNotifier{}
			h := NewHandler(testConfig(), zerolog.Nop(), notifier, nil)

			rec := postJSON(t, h.Router(), jsonCommand(testSlashToken, "/mygithub", tt.text))
			h.Wait()

			require.Equal(t, http.StatusOK, rec.Code)
			var msg slack.Msg
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))
			assert.Equal(t, slack.ResponseTypeEphemeral, msg.ResponseType)
			assert.Equal(t, tt.wantText, msg.Text)
			assert.Empty(t, notifier.calls(), "the pipeline must not run")
		})
	}
}

func TestCreateNotification_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		command string
		text    string
		want    string
	}{
		{name: "token", token: "wrong", command: "/mygithub", text: "help", want: "Invalid token"},
		{name: "command", token: testSlashToken, command: "/other", text: "help", want: "Invalid command"},
		{name: "text", token: testSlashToken, command: "/mygithub", text: "unknown", want: "Invalid text"},
		{name: "token checked first", token: "wrong", command: "/other", text: "unknown", want: "Invalid token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifier := &fakeNotifier{}
			h := NewHandler(testConfig(), zerolog.Nop(), notifier, nil)

			rec := postJSON(t, h.Router(), jsonCommand(tt.token, tt.command, tt.text))
			h.Wait()

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.want, rec.Body.String())
			assert.Empty(t, notifier.calls())
		})
	}
}

func TestCreateNotification_InvalidBody(t *testing.T) {
	h := NewHandler(testConfig(), zerolog.Nop(), &fakeNotifier{}, nil)

	rec := postJSON(t, h.Router(), "{not json")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid request body", rec.Body.String())
}

func TestCreateNotification_StartsPipeline(t *testing.T) {
	notifier := &fakeNotifier{}
	h := NewHandler(testConfig(), zerolog.Nop(), notifier, nil)

	rec := postJSON(t, h.Router(), jsonCommand(testSlashToken, "/mygithub", "create-notification"))
	h.Wait()

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.Equal(t, []string{Models.TriggerSlashCommand}, notifier.calls())
}

func TestCreateNotification_FormBody(t *testing.T) {
	notifier := &fakeNotifier{}
	h := NewHandler(testConfig(), zerolog.Nop(), notifier, nil)

	rec := postForm(t, h.Router(), url.Values{
		"token":   {testSlashToken},
		"command": {"/mygithub"},
		"text":    {"create-notification"},
		"user_id": {"U1"},
	})
	h.Wait()

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.Len(t, notifier.calls(), 1)
}

func TestCreateNotification_EndToEnd(t *testing.T) {
	var githubCalls atomic.Int32
	github := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		githubCalls.Add(1)
		assert.Equal(t, "/issues", r.URL.Path)
		assert.Equal(t, "Bearer gh-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id": 1, "title": "t", "html_url": "i", "state": "open",
			"labels": [{"id": 1, "name": "Priority: Medium"}],
			"repository": {"id": 2, "name": "r", "html_url": "u"}}]`))
	}))
	defer github.Close()

	webhookBodies := make(chan string, 1)
	webhook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		webhookBodies <- string(body)
	}))
	defer webhook.Close()

	cfg := testConfig()
	cfg.GitHubAPIURL = github.URL
	cfg.GitHubToken = "gh-token"
	cfg.SlackWebhookURL = webhook.URL

	notifier, err := CreateNotification.New(cfg, zerolog.Nop(), nil)
	require.NoError(t, err)
	h := NewHandler(cfg, zerolog.Nop(), notifier, nil)

	rec := postJSON(t, h.Router(), jsonCommand(testSlashToken, "/mygithub", "help"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, githubCalls.Load(), "help must not reach GitHub")

	rec = postJSON(t, h.Router(), jsonCommand(testSlashToken, "/mygithub", "create-notification"))
	h.Wait()

	assert.Equal(t, "ok", rec.Body.String())
	assert.Equal(t, int32(1), githubCalls.Load())
	select {
	case body := <-webhookBodies:
		var payload slack.HomeTabViewRequest
		require.NoError(t, json.Unmarshal([]byte(body), &payload))
		assert.Equal(t, slack.VTHomeTab, payload.Type)
		require.Len(t, payload.Blocks.BlockSet, 3)
		section, ok := payload.Blocks.BlockSet[2].(*slack.SectionBlock)
		require.True(t, ok)
		assert.Equal(t, "*Priority: Medium*\n- <i|t>(<u|r>): Priority: Medium \n", section.Text.Text)
	default:
		t.Fatal("webhook was not called")
	}
}

func getRuns(t *testing.T, handler http.Handler, target, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestGetNotificationRuns(t *testing.T) {
	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	lister := &fakeRunLister{runs: []Models.NotificationRun{
		{ID: 2, Trigger: "schedule", Delivered: true, StartedAt: started, FinishedAt: started},
	}}
	h := NewHandler(testConfig(), zerolog.Nop(), &fakeNotifier{}, lister)

	rec := getRuns(t, h.Router(), "/notification-runs", testSlashToken)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaultRunsLimit, lister.lastLimit)
	var runs []Models.NotificationRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, int64(2), runs[0].ID)
	assert.Equal(t, "schedule", runs[0].Trigger)

	rec = getRuns(t, h.Router(), "/notification-runs?limit=1000", testSlashToken)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, maxRunsLimit, lister.lastLimit)
}

func TestGetNotificationRuns_Errors(t *testing.T) {
	tests := []struct {
		name     string
		lister   RunLister
		query    string
		wantCode int
	}{
		{name: "history disabled", lister: nil, wantCode: http.StatusNotFound},
		{name: "bad limit", lister: &fakeRunLister{}, query: "?limit=abc", wantCode: http.StatusBadRequest},
		{name: "zero limit", lister: &fakeRunLister{}, query: "?limit=0", wantCode: http.StatusBadRequest},
		{name: "store failure", lister: &fakeRunLister{err: errors.New("boom")}, wantCode: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(testConfig(), zerolog.Nop(), &fakeNotifier{}, tt.lister)

			rec := getRuns(t, h.Router(), "/notification-runs"+tt.query, testSlashToken)

			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

func TestGetNotificationRuns_RequiresToken(t *testing.T) {
	tests := []struct {
		name          string
		authorization string
	}{
		{name: "missing", authorization: ""},
		{name: "wrong token", authorization: "Bearer wrong"},
		{name: "not bearer", authorization: "Basic " + testSlashToken},
		{name: "bare token", authorization: testSlashToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lister := &fakeRunLister{runs: []Models.NotificationRun{{ID: 1, FetchError: "Fetch Issues Error: dial tcp"}}}
			h := NewHandler(testConfig(), zerolog.Nop(), &fakeNotifier{}, lister)

			req := httptest.NewRequest(http.MethodGet, "/notification-runs", nil)
			if tt.authorization != "" {
				req.Header.Set("Authorization", tt.authorization)
			}
			rec := httptest.NewRecorder()
			h.Router().ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "unauthorized", rec.Body.String())
			assert.Zero(t, lister.lastLimit, "the store must not be read")
		})
	}
}
