// Package probe queries the host environment for the signals attached to every feedback submission.
//
// Each signal is optional: a probe reports ok=false when the signal is unavailable on the
// current platform or the query fails, and Collect simply leaves the corresponding key out.
package probe

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/feedback_sdk/pkg/properties"
)

const screenResolutionFormat = "%dx%d"

// EnvironmentProbe exposes the device and application signals of the host.
type EnvironmentProbe interface {
	DeviceModel() (string, bool)
	OSVersion() (string, bool)
	WiFiState() (string, bool)
	MobileDataEnabled() (bool, bool)
	GPSEnabled() (bool, bool)
	ScreenSize() (int, int, bool)
	ScreenName() (string, bool)
	AppVersionName() (string, bool)
	AppVersionCode() (int64, bool)
}

// PropertySetter receives collected signals.
type PropertySetter interface {
	Set(key string, value any)
}

type signal struct {
	key   string
	query func(EnvironmentProbe) (any, bool)
}

var signals = []signal{
	{key: properties.KeyModel, query: func(environment EnvironmentProbe) (any, bool) { return environment.DeviceModel() }},
	{key: properties.KeyOSVersion, query: func(environment EnvironmentProbe) (any, bool) { return environment.OSVersion() }},
	{key: properties.KeyWiFiEnabled, query: func(environment EnvironmentProbe) (any, bool) { return environment.WiFiState() }},
	{key: properties.KeyMobileDataEnabled, query: func(environment EnvironmentProbe) (any, bool) { return environment.MobileDataEnabled() }},
	{key: properties.KeyGPSEnabled, query: func(environment EnvironmentProbe) (any, bool) { return environment.GPSEnabled() }},
	{key: properties.KeyScreenResolution, query: queryScreenResolution},
	{key: properties.KeyActivity, query: func(environment EnvironmentProbe) (any, bool) { return environment.ScreenName() }},
	{key: properties.KeyAppVersionName, query: func(environment EnvironmentProbe) (any, bool) { return environment.AppVersionName() }},
	{key: properties.KeyAppVersionCode, query: func(environment EnvironmentProbe) (any, bool) { return environment.AppVersionCode() }},
}

func queryScreenResolution(environment EnvironmentProbe) (any, bool) {
	width, height, ok := environment.ScreenSize()
	if !ok || width <= 0 || height <= 0 {
		return nil, false
	}
	return fmt.Sprintf(screenResolutionFormat, width, height), true
}

// Collect queries every signal of environment and writes the available ones into target.
// A signal that reports unavailable, or panics, is skipped; Collect never fails.
// It returns the number of signals written.
func Collect(environment EnvironmentProbe, target PropertySetter, logger *zap.Logger) int {
	if environment == nil || target == nil {
		return 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	collected := 0
	for _, environmentSignal := range signals {
		value, ok := querySafely(environment, environmentSignal, logger)
		if !ok {
			continue
		}
		target.Set(environmentSignal.key, value)
		collected++
	}
	return collected
}

func querySafely(environment EnvironmentProbe, environmentSignal signal, logger *zap.Logger) (value any, ok bool) {
	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Debug("probe_signal_panicked", zap.String("signal", environmentSignal.key), zap.Any("panic", recovered))
			value = nil
			ok = false
		}
	}()
	value, ok = environmentSignal.query(environment)
	if !ok {
		logger.Debug("probe_signal_unavailable", zap.String("signal", environmentSignal.key))
	}
	return value, ok
}
