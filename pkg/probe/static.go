package probe

// Static reports fixed signal values supplied by the host. Zero-valued fields are
// reported as unavailable, so a partially filled Static omits the missing keys.
type Static struct {
	Model          string
	OSRelease      string
	WiFi           string
	MobileData     *bool
	GPS            *bool
	ScreenWidth    int
	ScreenHeight   int
	Screen         string
	VersionName    string
	VersionCode    int64
	HasVersionCode bool
}

func (static Static) DeviceModel() (string, bool) { return static.Model, static.Model != "" }
func (static Static) OSVersion() (string, bool) { return static.OSRelease, static.OSRelease != "" }
func (static Static) WiFiState() (string, bool) { return static.WiFi, static.WiFi != "" }
func (static Static) ScreenName() (string, bool) { return static.Screen, static.Screen != "" }
func (static Static) AppVersionName() (string, bool) { return static.VersionName, static.VersionName != "" }
func (static Static) AppVersionCode() (int64, bool) { return static.VersionCode, static.HasVersionCode }

func (static Static) MobileDataEnabled() (bool, bool) {
	if static.MobileData == nil {
		return false, false
	}
	return *static.MobileData, true
}

func (static Static) GPSEnabled() (bool, bool) {
	if static.GPS == nil {
		return false, false
	}
	return *static.GPS, true
}

func (static Static) ScreenSize() (int, int, bool) {
	return static.ScreenWidth, static.ScreenHeight, static.ScreenWidth > 0 && static.ScreenHeight > 0
}

// Bool returns a pointer to value, for filling the optional flags of Static.
func Bool(value bool) *bool {
	return &value
}
