package feedbackapi

import (
	"errors"
	"fmt"
	"strings"
)

const (
	errorMessageMissingCredentials = "feedbackapi: missing credentials"
	errorMessageMissingCallback    = "feedbackapi: missing callback"
	errorMessageSubmissionInFlight = "feedbackapi: submission already in flight"
	errorMessageTransport          = "feedbackapi: transport failure"
	errorMessageMalformedResponse  = "feedbackapi: malformed response"
	errorMessageUnexpectedStatus   = "feedbackapi: unexpected status"
	errorMessageInvalidBaseURL     = "feedbackapi: invalid base url"
	errorMessageEncodeFeedback     = "feedbackapi: encode feedback"
	errorMessageBuildRequest       = "feedbackapi: build request"
)

var (
	// ErrMissingCredentials reports that the app id or API key is not configured.
	ErrMissingCredentials = errors.New(errorMessageMissingCredentials)
	// ErrMissingCallback reports a submission attempted before SetCallback.
	ErrMissingCallback = errors.New(errorMessageMissingCallback)
	// ErrSubmissionInFlight reports a submission attempted while another one is pending.
	ErrSubmissionInFlight = errors.New(errorMessageSubmissionInFlight)
	// ErrTransport wraps network-level failures.
	ErrTransport = errors.New(errorMessageTransport)
	// ErrMalformedResponse reports a success response whose body could not be decoded.
	ErrMalformedResponse = errors.New(errorMessageMalformedResponse)
	// ErrUnexpectedStatus is matched by every *APIError.
	ErrUnexpectedStatus = errors.New(errorMessageUnexpectedStatus)
	// ErrInvalidBaseURL reports a base URL that is not absolute.
	ErrInvalidBaseURL = errors.New(errorMessageInvalidBaseURL)
)

// Credentials identify the application to the feedback service.
type Credentials struct {
	AppID  int64
	APIKey string
}

// Validate reports ErrMissingCredentials unless both the app id and the key are set.
func (credentials Credentials) Validate() error {
	if credentials.AppID <= 0 {
		return fmt.Errorf("%w: app id must be positive", ErrMissingCredentials)
	}
	if strings.TrimSpace(credentials.APIKey) == "" {
		return fmt.Errorf("%w: api key is empty", ErrMissingCredentials)
	}
	return nil
}

// FeedbackRequest is the body of a feedback submission.
type FeedbackRequest struct {
	Message    string         `json:"message"`
	Email      string         `json:"email"`
	Name       string         `json:"name"`
	Properties map[string]any `json:"properties"`
}

// SubmissionResult carries the service's confirmation of an accepted submission.
type SubmissionResult struct {
	StatusCode int
	Message    string
}

// APIError describes a non-2xx response from the feedback service.
type APIError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (apiError *APIError) Error() string {
	if apiError.Body == "" {
		return fmt.Sprintf("%s: %s returned %d", errorMessageUnexpectedStatus, apiError.Operation, apiError.StatusCode)
	}
	return fmt.Sprintf("%s: %s returned %d: %s", errorMessageUnexpectedStatus, apiError.Operation, apiError.StatusCode, apiError.Body)
}

// Is lets errors.Is match ErrUnexpectedStatus.
func (apiError *APIError) Is(target error) bool {
	return target == ErrUnexpectedStatus
}

// Callback receives the outcome of a submission. Exactly one method is invoked per submission.
type Callback interface {
	Success(result SubmissionResult)
	Failure(err error)
}

// CallbackFuncs adapts a pair of functions to Callback. Nil functions are skipped.
type CallbackFuncs struct {
	OnSuccess func(SubmissionResult)
	OnFailure func(error)
}

func (callbacks CallbackFuncs) Success(result SubmissionResult) {
	if callbacks.OnSuccess != nil {
		callbacks.OnSuccess(result)
	}
}

func (callbacks CallbackFuncs) Failure(err error) {
	if callbacks.OnFailure != nil {
		callbacks.OnFailure(err)
	}
}

// Dispatcher runs continuations on the host's thread of choice.
type Dispatcher interface {
	Dispatch(task func())
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(task func())

func (dispatcher DispatcherFunc) Dispatch(task func()) {
	dispatcher(task)
}

type inlineDispatcher struct{}

func (inlineDispatcher) Dispatch(task func()) {
	task()
}
