// Package feedbackapi is the HTTP client for the feedback-collection service.
package feedbackapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultBaseURL points at the hosted feedback service.
	DefaultBaseURL = "https://doorbell.io/api"
	// DefaultUserAgent identifies the SDK to the service.
	DefaultUserAgent = "feedback_sdk/1.0"

	// OperationOpen records that a feedback session was opened.
	OperationOpen = "open"
	// OperationImpression records that the feedback dialog was about to be shown.
	OperationImpression = "impression"
	// OperationSubmit submits feedback.
	OperationSubmit = "submit"

	applicationsPathSegment = "applications"
	apiKeyQueryParameter    = "key"

	headerAccept        = "Accept"
	headerContentType   = "Content-Type"
	headerUserAgent     = "User-Agent"
	contentTypeJSON     = "application/json"
	acceptedContentType = "application/json, text/plain"

	defaultHTTPTimeout   = 15 * time.Second
	maxResponseBodyBytes = 64 * 1024
)

// Config captures the collaborators of a Client.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *zap.Logger
	UserAgent  string
}

// Client talks to the feedback service on behalf of one application.
// At most one submission may be in flight at a time.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *zap.Logger
	userAgent  string

	stateMutex     sync.RWMutex
	credentials    Credentials
	callback       Callback
	dispatcher     Dispatcher
	loadingMessage string

	submitting atomic.Bool
	beacons    sync.WaitGroup
}

type confirmationPayload struct {
	Message string `json:"message"`
}

// NewClient builds a Client, filling in defaults for every zero-valued Config field.
func NewClient(config Config) (*Client, error) {
	rawBaseURL := strings.TrimSpace(config.BaseURL)
	if rawBaseURL == "" {
		rawBaseURL = DefaultBaseURL
	}
	baseURL, parseErr := url.Parse(strings.TrimRight(rawBaseURL, "/"))
	if parseErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBaseURL, parseErr)
	}
	if baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidBaseURL, rawBaseURL)
	}

	client := &Client{
		baseURL:    baseURL,
		httpClient: config.HTTPClient,
		logger:     config.Logger,
		userAgent:  strings.TrimSpace(config.UserAgent),
		dispatcher: inlineDispatcher{},
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if client.logger == nil {
		client.logger = zap.NewNop()
	}
	if client.userAgent == "" {
		client.userAgent = DefaultUserAgent
	}
	return client, nil
}

// SetAppID replaces the application id.
func (client *Client) SetAppID(appID int64) {
	client.stateMutex.Lock()
	defer client.stateMutex.Unlock()
	client.credentials.AppID = appID
}

// SetAPIKey replaces the API key.
func (client *Client) SetAPIKey(apiKey string) {
	client.stateMutex.Lock()
	defer client.stateMutex.Unlock()
	client.credentials.APIKey = apiKey
}

// SetCredentials replaces both the application id and the API key.
func (client *Client) SetCredentials(credentials Credentials) {
	client.stateMutex.Lock()
	defer client.stateMutex.Unlock()
	client.credentials = credentials
}

// Credentials returns the configured application identity.
func (client *Client) Credentials() Credentials {
	client.stateMutex.RLock()
	defer client.stateMutex.RUnlock()
	return client.credentials
}

// SetCallback registers the receiver of submission outcomes.
func (client *Client) SetCallback(callback Callback) {
	client.stateMutex.Lock()
	defer client.stateMutex.Unlock()
	client.callback = callback
}

// SetDispatcher chooses where callbacks run. A nil dispatcher runs them on the request goroutine.
func (client *Client) SetDispatcher(dispatcher Dispatcher) {
	client.stateMutex.Lock()
	defer client.stateMutex.Unlock()
	if dispatcher == nil {
		dispatcher = inlineDispatcher{}
	}
	client.dispatcher = dispatcher
}

// SetLoadingMessage stores the text a caller may display while a submission is pending.
func (client *Client) SetLoadingMessage(text string) {
	client.stateMutex.Lock()
	defer client.stateMutex.Unlock()
	client.loadingMessage = text
}

// LoadingMessage returns the text stored by SetLoadingMessage.
func (client *Client) LoadingMessage() string {
	client.stateMutex.RLock()
	defer client.stateMutex.RUnlock()
	return client.loadingMessage
}

// Submitting reports whether a submission is in flight.
func (client *Client) Submitting() bool {
	return client.submitting.Load()
}

// Open records a session-open beacon. The call returns immediately and its outcome is only logged.
func (client *Client) Open(ctx context.Context) {
	client.sendBeacon(ctx, OperationOpen)
}

// Impression records an impression beacon. The call returns immediately and its outcome is only logged.
func (client *Client) Impression(ctx context.Context) {
	client.sendBeacon(ctx, OperationImpression)
}

// Wait blocks until every outstanding beacon has finished.
func (client *Client) Wait() {
	client.beacons.Wait()
}

func (client *Client) sendBeacon(ctx context.Context, operation string) {
	credentials := client.Credentials()
	if validationErr := credentials.Validate(); validationErr != nil {
		client.logger.Warn("feedback_beacon_skipped", zap.String("operation", operation), zap.Error(validationErr))
		return
	}
	beaconContext := context.WithoutCancel(ctx)
	client.beacons.Add(1)
	go func() {
		defer client.beacons.Done()
		if _, beaconErr := client.post(beaconContext, credentials, operation, nil); beaconErr != nil {
			client.logger.Debug("feedback_beacon_failed", zap.String("operation", operation), zap.Error(beaconErr))
		}
	}()
}

// SendFeedback validates the configuration and starts one asynchronous submission.
// Configuration errors and concurrent submissions are reported synchronously and
// issue no request; otherwise exactly one method of the registered callback runs
// once the request resolves. Cancelling ctx after the call does not abort the request.
func (client *Client) SendFeedback(ctx context.Context, request FeedbackRequest) error {
	client.stateMutex.RLock()
	credentials := client.credentials
	callback := client.callback
	dispatcher := client.dispatcher
	client.stateMutex.RUnlock()

	if validationErr := credentials.Validate(); validationErr != nil {
		return validationErr
	}
	if callback == nil {
		return ErrMissingCallback
	}
	if !client.submitting.CompareAndSwap(false, true) {
		return ErrSubmissionInFlight
	}

	body, encodeErr := encodeFeedback(request)
	if encodeErr != nil {
		client.submitting.Store(false)
		return encodeErr
	}

	submitContext := context.WithoutCancel(ctx)
	go func() {
		result, submitErr := client.submit(submitContext, credentials, body)
		client.submitting.Store(false)
		dispatcher.Dispatch(func() {
			if submitErr != nil {
				client.logger.Warn("feedback_submit_failed", zap.Int64("app_id", credentials.AppID), zap.Error(submitErr))
				callback.Failure(submitErr)
				return
			}
			client.logger.Info("feedback_submitted", zap.Int64("app_id", credentials.AppID), zap.Int("status", result.StatusCode))
			callback.Success(result)
		})
	}()
	return nil
}

func encodeFeedback(request FeedbackRequest) ([]byte, error) {
	properties := request.Properties
	if properties == nil {
		properties = map[string]any{}
	}
	encoded, marshalErr := json.Marshal(FeedbackRequest{
		Message:    request.Message,
		Email:      request.Email,
		Name:       request.Name,
		Properties: properties,
	})
	if marshalErr != nil {
		return nil, fmt.Errorf("%s: %w", errorMessageEncodeFeedback, marshalErr)
	}
	return encoded, nil
}

func (client *Client) submit(ctx context.Context, credentials Credentials, body []byte) (SubmissionResult, error) {
	response, postErr := client.post(ctx, credentials, OperationSubmit, body)
	if postErr != nil {
		return SubmissionResult{}, postErr
	}
	message, decodeErr := decodeConfirmation(response)
	if decodeErr != nil {
		return SubmissionResult{}, decodeErr
	}
	return SubmissionResult{StatusCode: response.statusCode, Message: message}, nil
}

type rawResponse struct {
	statusCode  int
	contentType string
	body        []byte
}

func (client *Client) post(ctx context.Context, credentials Credentials, operation string, body []byte) (rawResponse, error) {
	endpoint := client.endpoint(credentials, operation)

	var requestBody io.Reader
	if body != nil {
		requestBody = bytes.NewReader(body)
	}
	httpRequest, requestErr := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, requestBody)
	if requestErr != nil {
		return rawResponse{}, fmt.Errorf("%s: %w", errorMessageBuildRequest, requestErr)
	}
	httpRequest.Header.Set(headerAccept, acceptedContentType)
	httpRequest.Header.Set(headerUserAgent, client.userAgent)
	if body != nil {
		httpRequest.Header.Set(headerContentType, contentTypeJSON)
	}

	httpResponse, doErr := client.httpClient.Do(httpRequest)
	if doErr != nil {
		return rawResponse{}, fmt.Errorf("%w: %s: %w", ErrTransport, operation, doErr)
	}
	defer httpResponse.Body.Close()

	responseBody, readErr := io.ReadAll(io.LimitReader(httpResponse.Body, maxResponseBodyBytes))
	if readErr != nil {
		return rawResponse{}, fmt.Errorf("%w: %s: read body: %w", ErrTransport, operation, readErr)
	}

	if httpResponse.StatusCode < http.StatusOK || httpResponse.StatusCode >= http.StatusMultipleChoices {
		return rawResponse{}, &APIError{
			Operation:  operation,
			StatusCode: httpResponse.StatusCode,
			Body:       strings.TrimSpace(string(responseBody)),
		}
	}

	return rawResponse{
		statusCode:  httpResponse.StatusCode,
		contentType: httpResponse.Header.Get(headerContentType),
		body:        responseBody,
	}, nil
}

func (client *Client) endpoint(credentials Credentials, operation string) string {
	endpointURL := *client.baseURL
	endpointURL.Path = strings.TrimRight(client.baseURL.Path, "/") + "/" + applicationsPathSegment + "/" + strconv.FormatInt(credentials.AppID, 10) + "/" + operation
	endpointURL.RawPath = ""
	query := endpointURL.Query()
	query.Set(apiKeyQueryParameter, credentials.APIKey)
	endpointURL.RawQuery = query.Encode()
	return endpointURL.String()
}

func decodeConfirmation(response rawResponse) (string, error) {
	mediaType, _, _ := mime.ParseMediaType(response.contentType)
	if mediaType != contentTypeJSON {
		return strings.TrimSpace(string(response.body)), nil
	}
	var payload confirmationPayload
	if unmarshalErr := json.Unmarshal(response.body, &payload); unmarshalErr != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedResponse, unmarshalErr)
	}
	return strings.TrimSpace(payload.Message), nil
}

// IsConfigurationError reports whether err stems from missing client configuration.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrMissingCredentials) || errors.Is(err, ErrMissingCallback)
}
