package PublishToSlack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/slack-go/slack"
)

type DeliveryErrorKind int

const (
	Transport DeliveryErrorKind = iota + 1
	BadStatus
)

type DeliveryError struct {
	Kind DeliveryErrorKind
	// only set for BadStatus
	StatusCode int
	Err        error
}

func (e *DeliveryError) Error() string {
	switch e.Kind {
	case Transport:
		return fmt.Sprintf("Notify by Slack Error: %v", e.Err)
	case BadStatus:
		return fmt.Sprintf("Notify by Slack Error: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	default:
		return "Notify by Slack Error"
	}
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

func (e *DeliveryError) Is(target error) bool {
	t, ok := target.(*DeliveryError)
	return ok && t.Kind == e.Kind
}

var (
	ErrTransport error = &DeliveryError{Kind: Transport}
	ErrBadStatus error = &DeliveryError{Kind: BadStatus}
)

// NotifyBySlack posts the payload to the incoming webhook once. Anything but
// a 200 is reported as a DeliveryError, nothing is retried.
func NotifyBySlack(ctx context.Context, httpClient *http.Client, webhookURL string, payload slack.HomeTabViewRequest) error {
	body, marshalError := json.Marshal(payload)
	if marshalError != nil {
		return fmt.Errorf("marshal slack payload: %w", marshalError)
	}

	request, newRequestError := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if newRequestError != nil {
		return &DeliveryError{Kind: Transport, Err: newRequestError}
	}
	request.Header.Set("Content-Type", "application/json")

	response, postError := httpClient.Do(request)
	if postError != nil {
		return &DeliveryError{Kind: Transport, Err: postError}
	}
	defer response.Body.Close()
	_, _ = io.Copy(io.Discard, response.Body)

	if response.StatusCode != http.StatusOK {
		return &DeliveryError{Kind: BadStatus, StatusCode: response.StatusCode}
	}

	return nil
}
