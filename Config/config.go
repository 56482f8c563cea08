package Config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	GitHubPersonalAccessTokenKey = "GITHUB_PERSONAL_ACCESS_TOKEN"
	SlackWebhookURLKey           = "SLACK_WEBHOOK_URL"
	SlackSlashCommandTokenKey    = "SLACK_SLASH_COMMAND_TOKEN"
)

const (
	defaultAppEnv          = "dev"
	defaultLogLevel        = "info"
	defaultHTTPPort        = "3000"
	defaultGitHubAPIURL    = "https://api.github.com"
	defaultHTTPTimeout     = 15 * time.Second
	defaultPipelineTimeout = 30 * time.Second
)

type Config struct {
	AppEnv   string
	LogLevel string
	HTTPAddr string

	GitHubAPIURL           string
	GitHubToken            string
	SlackWebhookURL        string
	SlackSlashCommandToken string

	HTTPTimeout     time.Duration
	PipelineTimeout time.Duration

	// empty disables the scheduled notification
	NotificationSchedule string
	// empty disables the notification run history
	DatabaseURL string
}

// Load reads the configuration from the environment. Values missing from the
// environment are looked up in the given dotenv files, the process environment wins.
func Load(envFiles ...string) (Config, error) {
	fileValues := map[string]string{}
	for _, envFile := range envFiles {
		values, readEnvFileError := godotenv.Read(envFile)
		if readEnvFileError != nil {
			// a missing .env is fine, everything can come from the environment
			if errors.Is(readEnvFileError, fs.ErrNotExist) {
				continue
			}
			return Config{}, fmt.Errorf("read env file %s: %w", envFile, readEnvFileError)
		}
		for key, value := range values {
			if _, exists := fileValues[key]; !exists {
				fileValues[key] = value
			}
		}
	}

	getenv := func(key, def string) string {
		if val := os.Getenv(key); val != "" {
			return val
		}
		if val := fileValues[key]; val != "" {
			return val
		}
		return def
	}

	httpTimeout, parseError := parseDuration("HTTP_TIMEOUT", getenv("HTTP_TIMEOUT", ""), defaultHTTPTimeout)
	if parseError != nil {
		return Config{}, parseError
	}
	pipelineTimeout, parseError := parseDuration("PIPELINE_TIMEOUT", getenv("PIPELINE_TIMEOUT", ""), defaultPipelineTimeout)
	if parseError != nil {
		return Config{}, parseError
	}

	return Config{
		AppEnv:   getenv("APP_ENV", defaultAppEnv),
		LogLevel: getenv("LOG_LEVEL", defaultLogLevel),
		HTTPAddr: fmt.Sprintf(":%s", getenv("HTTP_PORT", defaultHTTPPort)),

		GitHubAPIURL:           getenv("GITHUB_API_URL", defaultGitHubAPIURL),
		GitHubToken:            getenv(GitHubPersonalAccessTokenKey, ""),
		SlackWebhookURL:        getenv(SlackWebhookURLKey, ""),
		SlackSlashCommandToken: getenv(SlackSlashCommandTokenKey, ""),

		HTTPTimeout:     httpTimeout,
		PipelineTimeout: pipelineTimeout,

		NotificationSchedule: strings.TrimSpace(getenv("NOTIFICATION_SCHEDULE", "")),
		DatabaseURL:          getenv("DATABASE_URL", ""),
	}, nil
}

// Validate reports every missing secret at once. The slash command token is
// only needed when the server accepts slash commands.
func (c Config) Validate(requireSlashCommandToken bool) error {
	var missing []string
	if c.GitHubToken == "" {
		missing = append(missing, GitHubPersonalAccessTokenKey)
	}
	if c.SlackWebhookURL == "" {
		missing = append(missing, SlackWebhookURLKey)
	}
	if requireSlashCommandToken && c.SlackSlashCommandToken == "" {
		missing = append(missing, SlackSlashCommandTokenKey)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

func parseDuration(key, val string, def time.Duration) (time.Duration, error) {
	if val == "" {
		return def, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, val, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", key, val)
	}
	return d, nil
}
