package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	EventKindOpen       = "open"
	EventKindImpression = "impression"

	feedbackMessageMaxLength   = 4000
	feedbackEmailMaxLength     = 320
	feedbackNameMaxLength      = 200
	feedbackIPMaxLength        = 64
	feedbackUserAgentMaxLength = 400
)

var (
	ErrInvalidApplicationID = errors.New("model: invalid application id")
	ErrMissingAPIKey        = errors.New("model: missing api key")
	ErrMissingMessage       = errors.New("model: missing message")
	ErrInvalidProperties    = errors.New("model: invalid properties")
	ErrInvalidEventKind     = errors.New("model: invalid event kind")
)

// Application is a registered feedback target identified by a numeric id and a shared key.
type Application struct {
	ID        int64     `gorm:"primaryKey;autoIncrement:false"`
	APIKey    string    `gorm:"not null;size:200"`
	Name      string    `gorm:"size:200"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// NewApplication validates the id and key of an application.
func NewApplication(id int64, apiKey string, name string) (Application, error) {
	if id <= 0 {
		return Application{}, fmt.Errorf("%w: %d", ErrInvalidApplicationID, id)
	}
	trimmedKey := strings.TrimSpace(apiKey)
	if trimmedKey == "" {
		return Application{}, ErrMissingAPIKey
	}
	return Application{ID: id, APIKey: trimmedKey, Name: strings.TrimSpace(name)}, nil
}

type Feedback struct {
	ID            string    `gorm:"primaryKey;size:36"`
	ApplicationID int64     `gorm:"index;not null"`
	Message       string    `gorm:"not null;size:4000"`
	Email         string    `gorm:"size:320"`
	Name          string    `gorm:"size:200"`
	Properties    string    `gorm:"type:text"`
	IP            string    `gorm:"size:64"`
	UserAgent     string    `gorm:"size:400"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index"`
}

// FeedbackInput holds the raw values used to construct a Feedback.
type FeedbackInput struct {
	ApplicationID int64
	Message       string
	Email         string
	Name          string
	Properties    map[string]any
	IP            string
	UserAgent     string
}

// NewFeedback trims and truncates the submitted values. Only an empty message is rejected.
func NewFeedback(input FeedbackInput) (Feedback, error) {
	if input.ApplicationID <= 0 {
		return Feedback{}, fmt.Errorf("%w: %d", ErrInvalidApplicationID, input.ApplicationID)
	}
	message := strings.TrimSpace(input.Message)
	if message == "" {
		return Feedback{}, ErrMissingMessage
	}

	properties := input.Properties
	if properties == nil {
		properties = map[string]any{}
	}
	encodedProperties, encodeErr := json.Marshal(properties)
	if encodeErr != nil {
		return Feedback{}, fmt.Errorf("%w: %v", ErrInvalidProperties, encodeErr)
	}

	return Feedback{
		ID:            uuid.NewString(),
		ApplicationID: input.ApplicationID,
		Message:       truncate(message, feedbackMessageMaxLength),
		Email:         truncate(strings.TrimSpace(input.Email), feedbackEmailMaxLength),
		Name:          truncate(strings.TrimSpace(input.Name), feedbackNameMaxLength),
		Properties:    string(encodedProperties),
		IP:            truncate(strings.TrimSpace(input.IP), feedbackIPMaxLength),
		UserAgent:     truncate(strings.TrimSpace(input.UserAgent), feedbackUserAgentMaxLength),
	}, nil
}

// DecodedProperties returns the stored properties as a map. Undecodable text yields an empty map.
func (feedback Feedback) DecodedProperties() map[string]any {
	decoded := map[string]any{}
	if strings.TrimSpace(feedback.Properties) == "" {
		return decoded
	}
	if decodeErr := json.Unmarshal([]byte(feedback.Properties), &decoded); decodeErr != nil {
		return map[string]any{}
	}
	return decoded
}

// Event records an open or impression beacon.
type Event struct {
	ID            string    `gorm:"primaryKey;size:36"`
	ApplicationID int64     `gorm:"index;not null"`
	Kind          string    `gorm:"not null;size:16;index"`
	IP            string    `gorm:"size:64"`
	UserAgent     string    `gorm:"size:400"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
}

func NewEvent(applicationID int64, kind string, ip string, userAgent string) (Event, error) {
	if applicationID <= 0 {
		return Event{}, fmt.Errorf("%w: %d", ErrInvalidApplicationID, applicationID)
	}
	switch kind {
	case EventKindOpen, EventKindImpression:
	default:
		return Event{}, fmt.Errorf("%w: %s", ErrInvalidEventKind, kind)
	}
	return Event{
		ID:            uuid.NewString(),
		ApplicationID: applicationID,
		Kind:          kind,
		IP:            truncate(strings.TrimSpace(ip), feedbackIPMaxLength),
		UserAgent:     truncate(strings.TrimSpace(userAgent), feedbackUserAgentMaxLength),
	}, nil
}

// truncate cuts value to at most limit characters.
func truncate(value string, limit int) string {
	if utf8.RuneCountInString(value) <= limit {
		return value
	}
	runes := []rune(value)
	return string(runes[:limit])
}
