package main

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T, githubURL, webhookURL string) {
	t.Helper()
	t.Setenv("APP_ENV", "test")
	t.Setenv("LOG_LEVEL", "disabled")
	t.Setenv("GITHUB_API_URL", githubURL)
	t.Setenv("GITHUB_PERSONAL_ACCESS_TOKEN", "gh-token")
	t.Setenv("SLACK_WEBHOOK_URL", webhookURL)
	t.Setenv("SLACK_SLASH_COMMAND_TOKEN", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("NOTIFICATION_SCHEDULE", "")
}

func noEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), ".env")
}

func TestNotifyCommand_SendsOnce(t *testing.T) {
	github := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer github.Close()

	var webhookCalls atomic.Int32
	webhook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		webhookCalls.Add(1)
	}))
	defer webhook.Close()

	setRequiredEnv(t, github.URL, webhook.URL)

	cmd := newRootCommand()
	cmd.SetArgs([]string{"notify", "--env-file", noEnvFile(t)})
	require.NoError(t, cmd.Execute())

	assert.Equal(t, int32(1), webhookCalls.Load())
}

func TestNotifyCommand_DeliveryFailureStillExitsZero(t *testing.T) {
	github := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer github.Close()
	webhook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer webhook.Close()

	setRequiredEnv(t, github.URL, webhook.URL)

	cmd := newRootCommand()
	cmd.SetArgs([]string{"notify", "--env-file", noEnvFile(t)})
	assert.NoError(t, cmd.Execute())
}

func TestNotifyCommand_MissingConfig(t *testing.T) {
	setRequiredEnv(t, "http://127.0.0.1:1", "")
	t.Setenv("GITHUB_PERSONAL_ACCESS_TOKEN", "")

	cmd := newRootCommand()
	cmd.SetArgs([]string{"notify", "--env-file", noEnvFile(t)})
	err := cmd.Execute()

	require.Error(t, err)
	assert.Equal(t, "missing required configuration: GITHUB_PERSONAL_ACCESS_TOKEN, SLACK_WEBHOOK_URL", err.Error())
}

func TestServeCommand_RequiresSlashCommandToken(t *testing.T) {
	setRequiredEnv(t, "http://127.0.0.1:1", "http://127.0.0.1:1")

	cmd := newRootCommand()
	cmd.SetArgs([]string{"serve", "--env-file", noEnvFile(t)})
	err := cmd.Execute()

	require.Error(t, err)
	assert.Equal(t, "missing required configuration: SLACK_SLASH_COMMAND_TOKEN", err.Error())
}
