package dialog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MarkoPoloResearchLab/feedback_sdk/pkg/attribution"
)

const (
	DefaultTitle          = "Feedback"
	DefaultMessageHint    = "What's on your mind?"
	DefaultEmailHint      = "Your email"
	DefaultSendLabel      = "Send"
	DefaultCancelLabel    = "Cancel"
	DefaultSendingMessage = "Sending..."

	maxInitialEmailLength = 320
	maxInitialNameLength  = 200
)

// ErrInvalidConfig reports a dialog configuration rejected by ConfigBuilder.Build.
var ErrInvalidConfig = errors.New("dialog: invalid config")

// Config is the frozen display configuration of one dialog. The zero value shows
// both the email field and the attribution footer with the stock texts.
type Config struct {
	Title          string
	MessageHint    string
	EmailHint      string
	InitialEmail   string
	InitialName    string
	SendLabel      string
	CancelLabel    string
	SendingMessage string
	HideEmailField bool
	HidePoweredBy  bool
	Attribution    attribution.Config
	OnShow         func()
}

// EmailFieldVisible reports whether the email field is rendered.
func (config Config) EmailFieldVisible() bool {
	return !config.HideEmailField
}

// PoweredByVisible reports whether the attribution footer is rendered.
func (config Config) PoweredByVisible() bool {
	return !config.HidePoweredBy
}

func (config Config) withDefaults() Config {
	config.InitialEmail = strings.TrimSpace(config.InitialEmail)
	config.InitialName = strings.TrimSpace(config.InitialName)
	config.Title = defaultIfBlank(config.Title, DefaultTitle)
	config.MessageHint = defaultIfBlank(config.MessageHint, DefaultMessageHint)
	config.EmailHint = defaultIfBlank(config.EmailHint, DefaultEmailHint)
	config.SendLabel = defaultIfBlank(config.SendLabel, DefaultSendLabel)
	config.CancelLabel = defaultIfBlank(config.CancelLabel, DefaultCancelLabel)
	config.SendingMessage = defaultIfBlank(config.SendingMessage, DefaultSendingMessage)
	return config
}

func defaultIfBlank(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func (config Config) validate() error {
	if len(config.InitialEmail) > maxInitialEmailLength {
		return fmt.Errorf("%w: initial email longer than %d characters", ErrInvalidConfig, maxInitialEmailLength)
	}
	if len(config.InitialName) > maxInitialNameLength {
		return fmt.Errorf("%w: initial name longer than %d characters", ErrInvalidConfig, maxInitialNameLength)
	}
	return nil
}

// ConfigBuilder assembles a Config through chained setters.
type ConfigBuilder struct {
	config Config
}

// NewConfigBuilder starts from the stock configuration.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{}
}

func (builder *ConfigBuilder) WithTitle(title string) *ConfigBuilder {
	builder.config.Title = title
	return builder
}

func (builder *ConfigBuilder) WithMessageHint(messageHint string) *ConfigBuilder {
	builder.config.MessageHint = messageHint
	return builder
}

func (builder *ConfigBuilder) WithEmailHint(emailHint string) *ConfigBuilder {
	builder.config.EmailHint = emailHint
	return builder
}

// WithEmail pre-fills the email field.
func (builder *ConfigBuilder) WithEmail(email string) *ConfigBuilder {
	builder.config.InitialEmail = email
	return builder
}

// WithName sets the submitter name sent with the feedback. It has no form field.
func (builder *ConfigBuilder) WithName(name string) *ConfigBuilder {
	builder.config.InitialName = name
	return builder
}

func (builder *ConfigBuilder) WithEmailFieldVisible(visible bool) *ConfigBuilder {
	builder.config.HideEmailField = !visible
	return builder
}

func (builder *ConfigBuilder) WithPoweredByVisible(visible bool) *ConfigBuilder {
	builder.config.HidePoweredBy = !visible
	return builder
}

func (builder *ConfigBuilder) WithAttribution(config attribution.Config) *ConfigBuilder {
	builder.config.Attribution = config
	return builder
}

func (builder *ConfigBuilder) WithSendLabel(label string) *ConfigBuilder {
	builder.config.SendLabel = label
	return builder
}

func (builder *ConfigBuilder) WithCancelLabel(label string) *ConfigBuilder {
	builder.config.CancelLabel = label
	return builder
}

// WithSendingMessage sets the text shown while a submission is pending.
func (builder *ConfigBuilder) WithSendingMessage(message string) *ConfigBuilder {
	builder.config.SendingMessage = message
	return builder
}

// WithOnShow registers a callback invoked once, right after the dialog is rendered.
func (builder *ConfigBuilder) WithOnShow(onShow func()) *ConfigBuilder {
	builder.config.OnShow = onShow
	return builder
}

// Build applies defaults, validates and returns the configuration.
func (builder *ConfigBuilder) Build() (Config, error) {
	config := builder.config.withDefaults()
	if validationErr := config.validate(); validationErr != nil {
		return Config{}, validationErr
	}
	return config, nil
}
