package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/MarkoPoloResearchLab/feedback_sdk/internal/task"
	"github.com/MarkoPoloResearchLab/feedback_sdk/internal/terminal"
	"github.com/MarkoPoloResearchLab/feedback_sdk/pkg/dialog"
	"github.com/MarkoPoloResearchLab/feedback_sdk/pkg/feedbackapi"
	"github.com/MarkoPoloResearchLab/feedback_sdk/pkg/probe"
)

const (
	commandUseName                = "feedback"
	commandShortDescription       = "Send feedback from the terminal"
	commandLongDescription        = "Show the feedback dialog in the terminal and submit the answer to the feedback service"
	missingConfigurationMessage   = "missing required configuration"
	invalidConfigurationMessage   = "invalid configuration"
	loggerCreationErrorMessage    = "logger"
	submissionFailedMessage       = "feedback submission failed"
	dialogUnavailableMessage      = "feedback dialog unavailable"
	readPropertiesFileMessage     = "read properties file"
	unexpectedArgumentsMessage    = "unexpected command arguments"
	commandInitializationFailure  = "failed to configure command"
	flagNotDefinedMessage         = "flag %s not defined"
	environmentConfigurationError = "failed to apply environment configuration"
	propertySeparator             = "="

	flagNameAppID          = "app-id"
	flagNameAPIKey         = "api-key"
	flagNameBaseURL        = "base-url"
	flagNameEmail          = "email"
	flagNameName           = "name"
	flagNameMessage        = "message"
	flagNameMessageHint    = "message-hint"
	flagNameEmailHint      = "email-hint"
	flagNameHideEmail      = "hide-email"
	flagNameHidePoweredBy  = "hide-powered-by"
	flagNameProperty       = "property"
	flagNamePropertiesFile = "properties-file"
	flagNameScreen         = "screen"
	flagNameVersionName    = "app-version-name"
	flagNameVersionCode    = "app-version-code"
	flagNameTimeout        = "timeout"
	flagNameImpression     = "impression"

	environmentKeyAppID          = "FEEDBACK_APP_ID"
	environmentKeyAPIKey         = "FEEDBACK_API_KEY"
	environmentKeyBaseURL        = "FEEDBACK_BASE_URL"
	environmentKeyEmail          = "FEEDBACK_EMAIL"
	environmentKeyName           = "FEEDBACK_NAME"
	environmentKeyMessage        = "FEEDBACK_MESSAGE"
	environmentKeyMessageHint    = "FEEDBACK_MESSAGE_HINT"
	environmentKeyEmailHint      = "FEEDBACK_EMAIL_HINT"
	environmentKeyHideEmail      = "FEEDBACK_HIDE_EMAIL"
	environmentKeyHidePoweredBy  = "FEEDBACK_HIDE_POWERED_BY"
	environmentKeyProperties     = "FEEDBACK_PROPERTIES"
	environmentKeyPropertiesFile = "FEEDBACK_PROPERTIES_FILE"
	environmentKeyScreen         = "FEEDBACK_SCREEN"
	environmentKeyVersionName    = "FEEDBACK_APP_VERSION_NAME"
	environmentKeyVersionCode    = "FEEDBACK_APP_VERSION_CODE"
	environmentKeyTimeout        = "FEEDBACK_TIMEOUT"
	environmentKeyImpression     = "FEEDBACK_IMPRESSION"

	defaultTimeout = 15 * time.Second
)

// FeedbackConfig captures everything one feedback run needs.
type FeedbackConfig struct {
	Credentials    feedbackapi.Credentials
	BaseURL        string
	Email          string
	Name           string
	Message        string
	MessageHint    string
	EmailHint      string
	HideEmail      bool
	HidePoweredBy  bool
	Properties     []string
	PropertiesFile string
	Screen         string
	VersionName    string
	VersionCode    int64
	HasVersionCode bool
	Timeout        time.Duration
	Impression     bool
}

type flagBinding struct {
	environmentKey string
	flagName       string
}

var flagBindings = []flagBinding{
	{environmentKey: environmentKeyAppID, flagName: flagNameAppID},
	{environmentKey: environmentKeyAPIKey, flagName: flagNameAPIKey},
	{environmentKey: environmentKeyBaseURL, flagName: flagNameBaseURL},
	{environmentKey: environmentKeyEmail, flagName: flagNameEmail},
	{environmentKey: environmentKeyName, flagName: flagNameName},
	{environmentKey: environmentKeyMessage, flagName: flagNameMessage},
	{environmentKey: environmentKeyMessageHint, flagName: flagNameMessageHint},
	{environmentKey: environmentKeyEmailHint, flagName: flagNameEmailHint},
	{environmentKey: environmentKeyHideEmail, flagName: flagNameHideEmail},
	{environmentKey: environmentKeyHidePoweredBy, flagName: flagNameHidePoweredBy},
	{environmentKey: environmentKeyProperties, flagName: flagNameProperty},
	{environmentKey: environmentKeyPropertiesFile, flagName: flagNamePropertiesFile},
	{environmentKey: environmentKeyScreen, flagName: flagNameScreen},
	{environmentKey: environmentKeyVersionName, flagName: flagNameVersionName},
	{environmentKey: environmentKeyVersionCode, flagName: flagNameVersionCode},
	{environmentKey: environmentKeyTimeout, flagName: flagNameTimeout},
	{environmentKey: environmentKeyImpression, flagName: flagNameImpression},
}

// FeedbackApplication constructs and executes the feedback command.
type FeedbackApplication struct {
	configurationLoader *viper.Viper
	httpClient          *http.Client
	logger              *zap.Logger
	hostOptions         []probe.HostOption
}

// NewFeedbackApplication creates a FeedbackApplication with default dependencies.
func NewFeedbackApplication() *FeedbackApplication {
	return &FeedbackApplication{
		configurationLoader: viper.New(),
	}
}

// WithHTTPClient overrides the client used to reach the feedback service.
func (application *FeedbackApplication) WithHTTPClient(httpClient *http.Client) *FeedbackApplication {
	application.httpClient = httpClient
	return application
}

// WithLogger replaces the production logger.
func (application *FeedbackApplication) WithLogger(logger *zap.Logger) *FeedbackApplication {
	application.logger = logger
	return application
}

// WithHostOptions customizes the environment probe.
func (application *FeedbackApplication) WithHostOptions(options ...probe.HostOption) *FeedbackApplication {
	application.hostOptions = append(application.hostOptions, options...)
	return application
}

// Command builds the Cobra command for the feedback dialog.
func (application *FeedbackApplication) Command() (*cobra.Command, error) {
	rootCommand := &cobra.Command{
		Use:   commandUseName,
		Short: commandShortDescription,
		Long:  commandLongDescription,
		RunE:  application.runCommand,
	}

	if configurationErr := application.configureCommand(rootCommand); configurationErr != nil {
		return nil, configurationErr
	}

	return rootCommand, nil
}

func (application *FeedbackApplication) configureCommand(command *cobra.Command) error {
	application.configurationLoader.SetDefault(environmentKeyBaseURL, feedbackapi.DefaultBaseURL)
	application.configurationLoader.SetDefault(environmentKeyTimeout, defaultTimeout)
	application.configurationLoader.AutomaticEnv()

	commandFlags := command.Flags()
	commandFlags.String(flagNameAppID, "", "numeric application id")
	commandFlags.String(flagNameAPIKey, "", "application key")
	commandFlags.String(flagNameBaseURL, feedbackapi.DefaultBaseURL, "feedback service base URL")
	commandFlags.String(flagNameEmail, "", "pre-filled email address")
	commandFlags.String(flagNameName, "", "submitter name sent with the feedback")
	commandFlags.String(flagNameMessage, "", "feedback message; prompted for when empty")
	commandFlags.String(flagNameMessageHint, "", "hint shown above the message prompt")
	commandFlags.String(flagNameEmailHint, "", "hint shown in the email prompt")
	commandFlags.Bool(flagNameHideEmail, false, "do not prompt for an email address")
	commandFlags.Bool(flagNameHidePoweredBy, false, "hide the attribution footer")
	commandFlags.StringArray(flagNameProperty, nil, "custom property as key=value (repeatable)")
	commandFlags.String(flagNamePropertiesFile, "", "YAML file with a map of custom properties")
	commandFlags.String(flagNameScreen, "", "name of the screen the feedback is about")
	commandFlags.String(flagNameVersionName, "", "application version name")
	commandFlags.String(flagNameVersionCode, "", "application version code")
	commandFlags.Duration(flagNameTimeout, defaultTimeout, "time allowed for the whole submission")
	commandFlags.Bool(flagNameImpression, false, "record an impression before showing the dialog")

	for _, binding := range flagBindings {
		if bindErr := application.bindFlag(commandFlags, binding.environmentKey, binding.flagName); bindErr != nil {
			return bindErr
		}
		if environmentErr := application.applyEnvironmentConfiguration(commandFlags, binding.environmentKey, binding.flagName); environmentErr != nil {
			return environmentErr
		}
	}

	if markErr := command.MarkFlagRequired(flagNameAppID); markErr != nil {
		return markErr
	}
	return command.MarkFlagRequired(flagNameAPIKey)
}

func (application *FeedbackApplication) bindFlag(flagSet *pflag.FlagSet, environmentKey string, flagName string) error {
	flag := flagSet.Lookup(flagName)
	if flag == nil {
		return fmt.Errorf(flagNotDefinedMessage, flagName)
	}

	return application.configurationLoader.BindPFlag(environmentKey, flag)
}

func (application *FeedbackApplication) applyEnvironmentConfiguration(flagSet *pflag.FlagSet, environmentKey string, flagName string) error {
	environmentValue, environmentFound := os.LookupEnv(environmentKey)
	if !environmentFound {
		return nil
	}

	if setErr := flagSet.Set(flagName, environmentValue); setErr != nil {
		return fmt.Errorf("%s: %w", environmentConfigurationError, setErr)
	}

	return nil
}

func (application *FeedbackApplication) loadConfiguration() (FeedbackConfig, error) {
	loader := application.configurationLoader
	if missingErr := ensureRequiredConfiguration(loader); missingErr != nil {
		return FeedbackConfig{}, missingErr
	}

	appID, appIDErr := strconv.ParseInt(strings.TrimSpace(loader.GetString(environmentKeyAppID)), 10, 64)
	if appIDErr != nil {
		return FeedbackConfig{}, fmt.Errorf("%s: %s: %w", invalidConfigurationMessage, flagNameAppID, appIDErr)
	}

	feedbackConfig := FeedbackConfig{
		Credentials:    feedbackapi.Credentials{AppID: appID, APIKey: strings.TrimSpace(loader.GetString(environmentKeyAPIKey))},
		BaseURL:        strings.TrimSpace(loader.GetString(environmentKeyBaseURL)),
		Email:          loader.GetString(environmentKeyEmail),
		Name:           loader.GetString(environmentKeyName),
		Message:        strings.TrimSpace(loader.GetString(environmentKeyMessage)),
		MessageHint:    loader.GetString(environmentKeyMessageHint),
		EmailHint:      loader.GetString(environmentKeyEmailHint),
		HideEmail:      loader.GetBool(environmentKeyHideEmail),
		HidePoweredBy:  loader.GetBool(environmentKeyHidePoweredBy),
		Properties:     loader.GetStringSlice(environmentKeyProperties),
		PropertiesFile: strings.TrimSpace(loader.GetString(environmentKeyPropertiesFile)),
		Screen:         strings.TrimSpace(loader.GetString(environmentKeyScreen)),
		VersionName:    strings.TrimSpace(loader.GetString(environmentKeyVersionName)),
		Timeout:        loader.GetDuration(environmentKeyTimeout),
		Impression:     loader.GetBool(environmentKeyImpression),
	}
	if validationErr := feedbackConfig.Credentials.Validate(); validationErr != nil {
		return FeedbackConfig{}, fmt.Errorf("%s: %w", invalidConfigurationMessage, validationErr)
	}
	if rawVersionCode := strings.TrimSpace(loader.GetString(environmentKeyVersionCode)); rawVersionCode != "" {
		versionCode, versionCodeErr := strconv.ParseInt(rawVersionCode, 10, 64)
		if versionCodeErr != nil {
			return FeedbackConfig{}, fmt.Errorf("%s: %s: %w", invalidConfigurationMessage, flagNameVersionCode, versionCodeErr)
		}
		feedbackConfig.VersionCode = versionCode
		feedbackConfig.HasVersionCode = true
	}
	if feedbackConfig.Timeout <= 0 {
		feedbackConfig.Timeout = defaultTimeout
	}
	return feedbackConfig, nil
}

func ensureRequiredConfiguration(loader *viper.Viper) error {
	var missingParameters []string

	if strings.TrimSpace(loader.GetString(environmentKeyAppID)) == "" {
		missingParameters = append(missingParameters, flagNameAppID)
	}

	if strings.TrimSpace(loader.GetString(environmentKeyAPIKey)) == "" {
		missingParameters = append(missingParameters, flagNameAPIKey)
	}

	if len(missingParameters) == 0 {
		return nil
	}

	return fmt.Errorf("%s: %s", missingConfigurationMessage, strings.Join(missingParameters, ", "))
}

func (application *FeedbackApplication) runCommand(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return fmt.Errorf("%s: %s", unexpectedArgumentsMessage, strings.Join(arguments, " "))
	}

	feedbackConfig, configurationErr := application.loadConfiguration()
	if configurationErr != nil {
		return configurationErr
	}

	customProperties, propertiesErr := loadProperties(feedbackConfig.PropertiesFile, feedbackConfig.Properties)
	if propertiesErr != nil {
		return propertiesErr
	}

	logger := application.logger
	if logger == nil {
		productionLogger, loggerErr := zap.NewProduction()
		if loggerErr != nil {
			return fmt.Errorf("%s: %w", loggerCreationErrorMessage, loggerErr)
		}
		logger = productionLogger
	}
	defer func() {
		_ = logger.Sync()
	}()

	// From here on usage output would only hide the real failure.
	command.SilenceUsage = true

	return application.present(command.Context(), command, feedbackConfig, customProperties, logger)
}

func (application *FeedbackApplication) present(ctx context.Context, command *cobra.Command, feedbackConfig FeedbackConfig, customProperties map[string]any, logger *zap.Logger) error {
	httpClient := application.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: feedbackConfig.Timeout}
	}
	client, clientErr := feedbackapi.NewClient(feedbackapi.Config{
		BaseURL:    feedbackConfig.BaseURL,
		HTTPClient: httpClient,
		Logger:     logger,
	})
	if clientErr != nil {
		return fmt.Errorf("%s: %w", invalidConfigurationMessage, clientErr)
	}
	defer client.Wait()

	dialogConfig, dialogConfigErr := dialog.NewConfigBuilder().
		WithEmail(feedbackConfig.Email).
		WithName(feedbackConfig.Name).
		WithMessageHint(feedbackConfig.MessageHint).
		WithEmailHint(feedbackConfig.EmailHint).
		WithEmailFieldVisible(!feedbackConfig.HideEmail).
		WithPoweredByVisible(!feedbackConfig.HidePoweredBy).
		Build()
	if dialogConfigErr != nil {
		return dialogConfigErr
	}

	uiQueue := task.NewQueue(0)
	uiQueue.Start(ctx)
	defer uiQueue.Stop()

	view := terminal.NewView(command.InOrStdin(), command.OutOrStdout())
	controller, controllerErr := dialog.New(feedbackConfig.Credentials, dialogConfig,
		dialog.WithView(view),
		dialog.WithClient(client),
		dialog.WithProbe(application.hostProbe(command, feedbackConfig)),
		dialog.WithDispatcher(feedbackapi.DispatcherFunc(uiQueue.Dispatch)),
		dialog.WithLogger(logger),
	)
	if controllerErr != nil {
		return controllerErr
	}
	for _, key := range sortedKeys(customProperties) {
		controller.AddProperty(key, customProperties[key])
	}
	if feedbackConfig.Impression {
		controller.Impression(ctx)
	}

	var shownDialog *dialog.Dialog
	var showErr error
	if !uiQueue.Call(func() { shownDialog, showErr = controller.Show(ctx) }) {
		return errors.New(dialogUnavailableMessage)
	}
	if showErr != nil {
		return showErr
	}

	view.SetMessage(feedbackConfig.Message)
	if promptErr := view.Prompt(); promptErr != nil {
		uiQueue.Call(shownDialog.Cancel)
		return promptErr
	}

	var submitErr error
	if !uiQueue.Call(func() { submitErr = shownDialog.Submit() }) {
		return errors.New(dialogUnavailableMessage)
	}
	if submitErr != nil {
		return fmt.Errorf("%s: %w", submissionFailedMessage, submitErr)
	}

	waitContext, cancel := context.WithTimeout(ctx, feedbackConfig.Timeout)
	defer cancel()
	select {
	case outcome := <-view.Outcomes():
		if outcome.Err != nil {
			return fmt.Errorf("%s: %w", submissionFailedMessage, outcome.Err)
		}
		return nil
	case <-waitContext.Done():
		return fmt.Errorf("%s: %w", submissionFailedMessage, waitContext.Err())
	}
}

func (application *FeedbackApplication) hostProbe(command *cobra.Command, feedbackConfig FeedbackConfig) *probe.Host {
	options := []probe.HostOption{}
	if output, isFile := command.OutOrStdout().(*os.File); isFile && term.IsTerminal(int(output.Fd())) {
		options = append(options, probe.WithTerminal(int(output.Fd())))
	}
	options = append(options, application.hostOptions...)

	host := probe.NewHost(options...)
	host.Screen = feedbackConfig.Screen
	host.VersionName = feedbackConfig.VersionName
	host.VersionCode = feedbackConfig.VersionCode
	host.HasVersionCode = feedbackConfig.HasVersionCode
	return host
}

// loadProperties merges the YAML properties file with key=value pairs; pairs win.
// File values must be scalars since properties travel as a flat map.
func loadProperties(propertiesFile string, pairs []string) (map[string]any, error) {
	merged := map[string]any{}
	if propertiesFile != "" {
		contents, readErr := os.ReadFile(propertiesFile)
		if readErr != nil {
			return nil, fmt.Errorf("%s: %w", readPropertiesFileMessage, readErr)
		}
		if decodeErr := yaml.Unmarshal(contents, &merged); decodeErr != nil {
			return nil, fmt.Errorf("%s: %s: %w", readPropertiesFileMessage, propertiesFile, decodeErr)
		}
		if merged == nil {
			merged = map[string]any{}
		}
		for _, key := range sortedKeys(merged) {
			switch merged[key].(type) {
			case map[string]any, map[any]any, []any, nil:
				return nil, fmt.Errorf("%s: %s: %s %q must be a scalar value", invalidConfigurationMessage, flagNamePropertiesFile, propertiesFile, key)
			}
		}
	}
	for _, pair := range pairs {
		key, value, separated := strings.Cut(pair, propertySeparator)
		key = strings.TrimSpace(key)
		if !separated || key == "" {
			return nil, fmt.Errorf("%s: %s %q", invalidConfigurationMessage, flagNameProperty, pair)
		}
		merged[key] = value
	}
	return merged, nil
}

func sortedKeys(values map[string]any) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func main() {
	application := NewFeedbackApplication()
	rootCommand, commandErr := application.Command()
	if commandErr != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", commandInitializationFailure, commandErr)
		os.Exit(1)
	}

	if executeErr := rootCommand.Execute(); executeErr != nil {
		os.Exit(1)
	}
}
