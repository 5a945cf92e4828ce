package probe

import (
	"bufio"
	"bytes"
	"context"
	"io/fs"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"golang.org/x/term"
)

const (
	operatingSystemLinux   = "linux"
	operatingSystemDarwin  = "darwin"
	operatingSystemWindows = "windows"

	wifiStateCompleted    = "COMPLETED"
	wifiStateDisconnected = "DISCONNECTED"

	interfaceStateUp = "up"

	linuxProductNamePath     = "sys/class/dmi/id/product_name"
	linuxOSReleasePath       = "etc/os-release"
	linuxNetworkClassPath    = "sys/class/net"
	linuxWirelessStatusPath  = "proc/net/wireless"
	linuxOSReleasePrettyName = "PRETTY_NAME="
	linuxMobileDataPrefix    = "wwan"

	commandTimeout = 2 * time.Second
)

// CommandRunner executes an external program and returns its standard output.
type CommandRunner func(ctx context.Context, name string, arguments ...string) ([]byte, error)

// Host probes the machine the SDK runs on. Application-level signals (screen name,
// version) cannot be discovered and are taken from the fields the host fills in.
type Host struct {
	Screen         string
	VersionName    string
	VersionCode    int64
	HasVersionCode bool

	operatingSystem string
	fileSystem      fs.FS
	runCommand      CommandRunner
	terminalFD      int
	hasTerminal     bool
}

// HostOption customizes a Host probe.
type HostOption func(*Host)

// WithFileSystem replaces the root file system used for /sys, /proc and /etc lookups.
func WithFileSystem(fileSystem fs.FS) HostOption {
	return func(host *Host) {
		host.fileSystem = fileSystem
	}
}

// WithOperatingSystem overrides runtime.GOOS.
func WithOperatingSystem(operatingSystem string) HostOption {
	return func(host *Host) {
		host.operatingSystem = operatingSystem
	}
}

// WithCommandRunner replaces the external command executor.
func WithCommandRunner(runner CommandRunner) HostOption {
	return func(host *Host) {
		host.runCommand = runner
	}
}

// WithTerminal reports the size of the terminal behind fd as the screen resolution.
func WithTerminal(fd int) HostOption {
	return func(host *Host) {
		host.terminalFD = fd
		host.hasTerminal = true
	}
}

// NewHost builds a probe for the current machine.
func NewHost(options ...HostOption) *Host {
	host := &Host{
		operatingSystem: runtime.GOOS,
		fileSystem:      os.DirFS("/"),
		runCommand:      runExternalCommand,
	}
	for _, option := range options {
		if option != nil {
			option(host)
		}
	}
	return host
}

func runExternalCommand(ctx context.Context, name string, arguments ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, arguments...).Output()
}

func (host *Host) DeviceModel() (string, bool) {
	switch host.operatingSystem {
	case operatingSystemLinux:
		return host.readTrimmedFile(linuxProductNamePath)
	case operatingSystemDarwin:
		return host.commandOutput("sysctl", "-n", "hw.model")
	default:
		return "", false
	}
}

func (host *Host) OSVersion() (string, bool) {
	switch host.operatingSystem {
	case operatingSystemLinux:
		return host.linuxPrettyName()
	case operatingSystemDarwin:
		version, ok := host.commandOutput("sw_vers", "-productVersion")
		if !ok {
			return "", false
		}
		return "macOS " + version, true
	case operatingSystemWindows:
		return host.commandOutput("cmd", "/c", "ver")
	default:
		return "", false
	}
}

// WiFiState reports COMPLETED when a wireless interface is associated and DISCONNECTED otherwise.
func (host *Host) WiFiState() (string, bool) {
	if host.operatingSystem != operatingSystemLinux {
		return "", false
	}
	contents, readErr := fs.ReadFile(host.fileSystem, linuxWirelessStatusPath)
	if readErr != nil {
		return "", false
	}
	scanner := bufio.NewScanner(bytes.NewReader(contents))
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		// the first two lines are column headers
		if lineNumber <= 2 {
			continue
		}
		if strings.Contains(scanner.Text(), ":") {
			return wifiStateCompleted, true
		}
	}
	return wifiStateDisconnected, true
}

// MobileDataEnabled reports whether any cellular (wwan) interface is up.
func (host *Host) MobileDataEnabled() (bool, bool) {
	if host.operatingSystem != operatingSystemLinux {
		return false, false
	}
	entries, readErr := fs.ReadDir(host.fileSystem, linuxNetworkClassPath)
	if readErr != nil {
		return false, false
	}
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), linuxMobileDataPrefix) {
			continue
		}
		state, ok := host.readTrimmedFile(linuxNetworkClassPath + "/" + entry.Name() + "/operstate")
		if ok && state == interfaceStateUp {
			return true, true
		}
	}
	return false, true
}

// GPSEnabled is never available on desktop and server hosts.
func (host *Host) GPSEnabled() (bool, bool) {
	return false, false
}

func (host *Host) ScreenSize() (int, int, bool) {
	if !host.hasTerminal {
		return 0, 0, false
	}
	width, height, sizeErr := term.GetSize(host.terminalFD)
	if sizeErr != nil {
		return 0, 0, false
	}
	return width, height, true
}

func (host *Host) ScreenName() (string, bool) {
	return host.Screen, host.Screen != ""
}

func (host *Host) AppVersionName() (string, bool) {
	return host.VersionName, host.VersionName != ""
}

func (host *Host) AppVersionCode() (int64, bool) {
	return host.VersionCode, host.HasVersionCode
}

func (host *Host) linuxPrettyName() (string, bool) {
	contents, readErr := fs.ReadFile(host.fileSystem, linuxOSReleasePath)
	if readErr != nil {
		return "", false
	}
	scanner := bufio.NewScanner(bytes.NewReader(contents))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, linuxOSReleasePrettyName) {
			continue
		}
		prettyName := strings.Trim(strings.TrimPrefix(line, linuxOSReleasePrettyName), `"'`)
		return prettyName, prettyName != ""
	}
	return "", false
}

func (host *Host) readTrimmedFile(path string) (string, bool) {
	if host.fileSystem == nil {
		return "", false
	}
	contents, readErr := fs.ReadFile(host.fileSystem, path)
	if readErr != nil {
		return "", false
	}
	trimmed := strings.TrimSpace(string(contents))
	return trimmed, trimmed != ""
}

func (host *Host) commandOutput(name string, arguments ...string) (string, bool) {
	if host.runCommand == nil {
		return "", false
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	output, runErr := host.runCommand(ctx, name, arguments...)
	if runErr != nil {
		return "", false
	}
	trimmed := strings.TrimSpace(string(output))
	return trimmed, trimmed != ""
}
