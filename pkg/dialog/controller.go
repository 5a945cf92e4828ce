// Package dialog drives the feedback dialog: it collects the environment, renders the
// form through a host-provided View and turns a send click into one feedback submission.
package dialog

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/feedback_sdk/pkg/feedbackapi"
	"github.com/MarkoPoloResearchLab/feedback_sdk/pkg/probe"
	"github.com/MarkoPoloResearchLab/feedback_sdk/pkg/properties"
)

var (
	// ErrAlreadyShown reports a second Show on the same controller.
	ErrAlreadyShown = errors.New("dialog: already shown")
	// ErrNotInteractive reports a button press while the dialog cannot accept one.
	ErrNotInteractive = errors.New("dialog: not interactive")
)

// FeedbackClient is the part of feedbackapi.Client the controller relies on.
type FeedbackClient interface {
	SetCredentials(credentials feedbackapi.Credentials)
	SetCallback(callback feedbackapi.Callback)
	SetDispatcher(dispatcher feedbackapi.Dispatcher)
	SetLoadingMessage(text string)
	Open(ctx context.Context)
	Impression(ctx context.Context)
	SendFeedback(ctx context.Context, request feedbackapi.FeedbackRequest) error
}

// Option customizes a Controller.
type Option func(*Controller)

func WithView(view View) Option {
	return func(controller *Controller) {
		controller.view = view
	}
}

func WithClient(client FeedbackClient) Option {
	return func(controller *Controller) {
		controller.client = client
	}
}

func WithProbe(environment probe.EnvironmentProbe) Option {
	return func(controller *Controller) {
		controller.environment = environment
	}
}

// WithDispatcher routes submission outcomes onto the host's UI thread.
func WithDispatcher(dispatcher feedbackapi.Dispatcher) Option {
	return func(controller *Controller) {
		controller.dispatcher = dispatcher
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(controller *Controller) {
		controller.logger = logger
	}
}

// Controller owns one feedback presentation.
type Controller struct {
	credentials feedbackapi.Credentials
	config      Config
	view        View
	client      FeedbackClient
	environment probe.EnvironmentProbe
	dispatcher  feedbackapi.Dispatcher
	logger      *zap.Logger
	properties  *properties.Bag

	mutex  sync.Mutex
	dialog *Dialog
}

// New configures a controller and collects the environment properties.
// Missing optional configuration falls back to defaults; invalid credentials are
// reported when a submission is attempted.
func New(credentials feedbackapi.Credentials, config Config, options ...Option) (*Controller, error) {
	controller := &Controller{
		credentials: credentials,
		config:      config.withDefaults(),
		properties:  properties.NewBag(),
	}
	for _, option := range options {
		if option != nil {
			option(controller)
		}
	}
	if controller.logger == nil {
		controller.logger = zap.NewNop()
	}
	if controller.view == nil {
		controller.view = nopView{}
	}
	if controller.client == nil {
		client, clientErr := feedbackapi.NewClient(feedbackapi.Config{Logger: controller.logger})
		if clientErr != nil {
			return nil, fmt.Errorf("dialog: create client: %w", clientErr)
		}
		controller.client = client
	}
	controller.client.SetCredentials(credentials)
	if controller.dispatcher != nil {
		controller.client.SetDispatcher(controller.dispatcher)
	}
	if validationErr := credentials.Validate(); validationErr != nil {
		controller.logger.Warn("feedback_credentials_invalid", zap.Error(validationErr))
	}

	controller.collectEnvironmentProperties()
	return controller, nil
}

func (controller *Controller) collectEnvironmentProperties() {
	if controller.environment == nil {
		return
	}
	collected := probe.Collect(controller.environment, controller.properties, controller.logger)
	controller.logger.Debug("feedback_environment_collected", zap.Int("properties", collected))
}

// AddProperty stores value under key, replacing any earlier value.
func (controller *Controller) AddProperty(key string, value any) *Controller {
	controller.properties.Set(key, value)
	return controller
}

// Properties returns a copy of the properties that the next submission will carry.
func (controller *Controller) Properties() map[string]any {
	return controller.properties.Snapshot()
}

// Config returns the effective display configuration.
func (controller *Controller) Config() Config {
	return controller.config
}

// Impression records that the dialog is about to be shown. It never blocks.
func (controller *Controller) Impression(ctx context.Context) *Controller {
	controller.client.Impression(ctx)
	return controller
}

// Show opens the feedback session, renders the form and returns the dialog handle.
// The configured OnShow callback has run by the time Show returns.
func (controller *Controller) Show(ctx context.Context) (*Dialog, error) {
	controller.mutex.Lock()
	if controller.dialog != nil {
		controller.mutex.Unlock()
		return nil, ErrAlreadyShown
	}
	dialog := &Dialog{
		controller: controller,
		ctx:        ctx,
		state:      StateConfigured,
	}
	controller.dialog = dialog
	controller.mutex.Unlock()

	controller.client.Open(ctx)
	dialog.render()

	if controller.config.OnShow != nil {
		controller.config.OnShow()
	}
	return dialog, nil
}

func (controller *Controller) form() Form {
	return Form{
		Title:             controller.config.Title,
		MessageHint:       controller.config.MessageHint,
		EmailHint:         controller.config.EmailHint,
		Email:             controller.config.InitialEmail,
		EmailFieldVisible: controller.config.EmailFieldVisible(),
		PoweredByVisible:  controller.config.PoweredByVisible(),
		Attribution:       controller.config.Attribution,
		SendLabel:         controller.config.SendLabel,
		CancelLabel:       controller.config.CancelLabel,
	}
}
