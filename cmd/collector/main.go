package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/feedback_sdk/internal/collector"
	"github.com/MarkoPoloResearchLab/feedback_sdk/internal/model"
	"github.com/MarkoPoloResearchLab/feedback_sdk/internal/storage"
)

const (
	commandUseName                   = "collector"
	commandShortDescription          = "Run the local feedback collector"
	commandLongDescription           = "Launch an HTTP service that accepts feedback sessions, impressions and submissions"
	missingConfigurationMessage      = "missing required configuration"
	invalidApplicationMessage        = "invalid application"
	loggerCreationErrorMessage       = "logger"
	logEventListening                = "listening"
	logEventApplicationsSeeded       = "applications_seeded"
	logFieldAddress                  = "addr"
	logFieldCount                    = "count"
	flagNameApplicationAddress       = "app-addr"
	flagNameDatabaseDataSourceName   = "db-dsn"
	flagNameApplication              = "application"
	flagUsageApplicationAddress      = "address for the HTTP server to listen on"
	flagUsageDatabaseDataSourceName  = "SQLite data source name"
	flagUsageApplication             = "application to register as id=key (repeatable)"
	environmentKeyApplicationAddress = "APP_ADDR"
	environmentKeyDatabaseDataSource = "DB_DSN"
	environmentKeyApplications       = "COLLECTOR_APPLICATIONS"
	defaultApplicationAddress        = ":8080"
	applicationSeparator             = "="
	loggerContextOpenDatabase        = "open_db"
	loggerContextAutoMigrate         = "migrate"
	loggerContextSeedApplications    = "seed_applications"
	loggerContextServer              = "server"
	readHeaderTimeoutSeconds         = 5
	unexpectedArgumentsMessage       = "unexpected command arguments"
	commandInitializationFailure     = "failed to configure command"
	flagNotDefinedMessage            = "flag %s not defined"
	environmentConfigurationError    = "failed to apply environment configuration"
)

// CollectorConfig captures configuration needed to run the collector.
type CollectorConfig struct {
	ApplicationAddress     string
	DatabaseDataSourceName string
	Applications           []model.Application
}

// DatabaseOpener opens a database connection using the provided data source name.
type DatabaseOpener func(string) (*gorm.DB, error)

// ServerRunner serves HTTP until the server stops.
type ServerRunner func(*http.Server) error

// CollectorApplication constructs and executes the collector command.
type CollectorApplication struct {
	configurationLoader *viper.Viper
	databaseOpener      DatabaseOpener
	serverRunner        ServerRunner
	logger              *zap.Logger
}

// NewCollectorApplication creates a CollectorApplication with default dependencies.
func NewCollectorApplication() *CollectorApplication {
	return &CollectorApplication{
		configurationLoader: viper.New(),
		databaseOpener:      openSQLiteDatabase,
		serverRunner:        listenAndServe,
	}
}

func openSQLiteDatabase(dataSourceName string) (*gorm.DB, error) {
	return storage.OpenDatabase(storage.Config{DriverName: storage.DriverNameSQLite, DataSourceName: dataSourceName})
}

func listenAndServe(server *http.Server) error {
	if serveErr := server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return serveErr
	}
	return nil
}

// WithDatabaseOpener overrides the database opener dependency.
func (application *CollectorApplication) WithDatabaseOpener(databaseOpener DatabaseOpener) *CollectorApplication {
	application.databaseOpener = databaseOpener
	return application
}

// WithServerRunner overrides how the configured HTTP server is run.
func (application *CollectorApplication) WithServerRunner(serverRunner ServerRunner) *CollectorApplication {
	application.serverRunner = serverRunner
	return application
}

// WithLogger replaces the production logger.
func (application *CollectorApplication) WithLogger(logger *zap.Logger) *CollectorApplication {
	application.logger = logger
	return application
}

// Command builds the Cobra command for the collector.
func (application *CollectorApplication) Command() (*cobra.Command, error) {
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

func (application *CollectorApplication) configureCommand(command *cobra.Command) error {
	application.configurationLoader.SetDefault(environmentKeyApplicationAddress, defaultApplicationAddress)
	application.configurationLoader.SetDefault(environmentKeyDatabaseDataSource, "")
	application.configurationLoader.AutomaticEnv()

	commandFlags := command.Flags()
	commandFlags.String(flagNameApplicationAddress, defaultApplicationAddress, flagUsageApplicationAddress)
	commandFlags.String(flagNameDatabaseDataSourceName, "", flagUsageDatabaseDataSourceName)
	commandFlags.StringSlice(flagNameApplication, nil, flagUsageApplication)

	bindings := []struct {
		environmentKey string
		flagName       string
	}{
		{environmentKey: environmentKeyApplicationAddress, flagName: flagNameApplicationAddress},
		{environmentKey: environmentKeyDatabaseDataSource, flagName: flagNameDatabaseDataSourceName},
		{environmentKey: environmentKeyApplications, flagName: flagNameApplication},
	}
	for _, binding := range bindings {
		if bindErr := application.bindFlag(commandFlags, binding.environmentKey, binding.flagName); bindErr != nil {
			return bindErr
		}
		if environmentErr := application.applyEnvironmentConfiguration(commandFlags, binding.environmentKey, binding.flagName); environmentErr != nil {
			return environmentErr
		}
	}

	return command.MarkFlagRequired(flagNameDatabaseDataSourceName)
}

func (application *CollectorApplication) bindFlag(flagSet *pflag.FlagSet, environmentKey string, flagName string) error {
	flag := flagSet.Lookup(flagName)
	if flag == nil {
		return fmt.Errorf(flagNotDefinedMessage, flagName)
	}

	return application.configurationLoader.BindPFlag(environmentKey, flag)
}

func (application *CollectorApplication) applyEnvironmentConfiguration(flagSet *pflag.FlagSet, environmentKey string, flagName string) error {
	environmentValue, environmentFound := os.LookupEnv(environmentKey)
	if !environmentFound {
		return nil
	}

	if setErr := flagSet.Set(flagName, environmentValue); setErr != nil {
		return fmt.Errorf("%s: %w", environmentConfigurationError, setErr)
	}

	return nil
}

func (application *CollectorApplication) runCommand(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return fmt.Errorf("%s: %s", unexpectedArgumentsMessage, strings.Join(arguments, " "))
	}

	applications, applicationsErr := parseApplications(application.configurationLoader.GetStringSlice(environmentKeyApplications))
	if applicationsErr != nil {
		return applicationsErr
	}
	collectorConfig := CollectorConfig{
		ApplicationAddress:     application.configurationLoader.GetString(environmentKeyApplicationAddress),
		DatabaseDataSourceName: strings.TrimSpace(application.configurationLoader.GetString(environmentKeyDatabaseDataSource)),
		Applications:           applications,
	}

	if validationErr := application.ensureRequiredConfiguration(collectorConfig); validationErr != nil {
		return validationErr
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

	database, databaseErr := application.databaseOpener(collectorConfig.DatabaseDataSourceName)
	if databaseErr != nil {
		logger.Error(loggerContextOpenDatabase, zap.Error(databaseErr))
		return databaseErr
	}

	if migrateErr := storage.AutoMigrate(database); migrateErr != nil {
		logger.Error(loggerContextAutoMigrate, zap.Error(migrateErr))
		return migrateErr
	}

	if seedErr := storage.SeedApplications(database, collectorConfig.Applications); seedErr != nil {
		logger.Error(loggerContextSeedApplications, zap.Error(seedErr))
		return seedErr
	}
	logger.Info(logEventApplicationsSeeded, zap.Int(logFieldCount, len(collectorConfig.Applications)))

	gin.SetMode(gin.ReleaseMode)
	router := collector.NewRouter(database, logger, collector.DefaultRouterConfig())

	httpServer := &http.Server{
		Addr:              collectorConfig.ApplicationAddress,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeoutSeconds * time.Second,
	}

	logger.Info(logEventListening, zap.String(logFieldAddress, collectorConfig.ApplicationAddress))
	if serveErr := application.serverRunner(httpServer); serveErr != nil {
		logger.Error(loggerContextServer, zap.Error(serveErr))
		return serveErr
	}

	return nil
}

func (application *CollectorApplication) ensureRequiredConfiguration(configuration CollectorConfig) error {
	if configuration.DatabaseDataSourceName == "" {
		return fmt.Errorf("%s: %s", missingConfigurationMessage, flagNameDatabaseDataSourceName)
	}
	return nil
}

// parseApplications turns id=key pairs into applications.
func parseApplications(rawApplications []string) ([]model.Application, error) {
	applications := make([]model.Application, 0, len(rawApplications))
	for _, rawApplication := range rawApplications {
		trimmed := strings.TrimSpace(rawApplication)
		if trimmed == "" {
			continue
		}
		rawID, apiKey, separated := strings.Cut(trimmed, applicationSeparator)
		if !separated {
			return nil, fmt.Errorf("%s: %q", invalidApplicationMessage, trimmed)
		}
		applicationID, parseErr := strconv.ParseInt(strings.TrimSpace(rawID), 10, 64)
		if parseErr != nil {
			return nil, fmt.Errorf("%s: %q: %w", invalidApplicationMessage, trimmed, parseErr)
		}
		registered, applicationErr := model.NewApplication(applicationID, apiKey, "")
		if applicationErr != nil {
			return nil, fmt.Errorf("%s: %q: %w", invalidApplicationMessage, trimmed, applicationErr)
		}
		applications = append(applications, registered)
	}
	return applications, nil
}

func main() {
	application := NewCollectorApplication()
	rootCommand, commandErr := application.Command()
	if commandErr != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", commandInitializationFailure, commandErr)
		os.Exit(1)
	}

	if executeErr := rootCommand.Execute(); executeErr != nil {
		os.Exit(1)
	}
}
