package AuthorizeCommand

import (
	"slices"

	"github.com/BaseW/MyGitHubNotification/Models"

	"github.com/slack-go/slack"
)

type AuthorizedRequest = Models.AuthorizedRequest

const (
	TextHelp               = "help"
	TextHealthCheck        = "health-check"
	TextCreateNotification = "create-notification"
)

var (
	AvailableCommands = []string{"/mygithub"}
	AvailableTexts    = []string{TextHelp, TextHealthCheck, TextCreateNotification}
)

type AuthErrorKind int

const (
	InvalidToken AuthErrorKind = iota + 1
	InvalidCommand
	InvalidText
)

// Code is the rejection code reported to the caller and to the logs.
func (k AuthErrorKind) Code() string {
	switch k {
	case InvalidToken:
		return "invalid_token"
	case InvalidCommand:
		return "invalid_command"
	case InvalidText:
		return "invalid_text"
	default:
		return "unknown"
	}
}

type AuthError struct {
	Kind AuthErrorKind
}

func (e *AuthError) Error() string {
	switch e.Kind {
	case InvalidToken:
		return "Invalid token"
	case InvalidCommand:
		return "Invalid command"
	case InvalidText:
		return "Invalid text"
	default:
		return "Invalid request"
	}
}

func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	return ok && t.Kind == e.Kind
}

var (
	ErrInvalidToken   error = &AuthError{Kind: InvalidToken}
	ErrInvalidCommand error = &AuthError{Kind: InvalidCommand}
	ErrInvalidText    error = &AuthError{Kind: InvalidText}
)

func Authorize(payload slack.SlashCommand, slashCommandToken string) (AuthorizedRequest, error) {
	// check token, command, text
	if !payload.ValidateToken(slashCommandToken) {
		return AuthorizedRequest{}, &AuthError{Kind: InvalidToken}
	}

	if !slices.Contains(AvailableCommands, payload.Command) {
		return AuthorizedRequest{}, &AuthError{Kind: InvalidCommand}
	}

	if !slices.Contains(AvailableTexts, payload.Text) {
		return AuthorizedRequest{}, &AuthError{Kind: InvalidText}
	}

	return AuthorizedRequest{
		Command: payload.Command,
		Text:    payload.Text,
	}, nil
}
