// Package properties holds the device and application metadata attached to a feedback submission.
package properties

import (
	"sort"
	"sync"
)

const (
	// KeyModel identifies the device model.
	KeyModel = "Model"
	// KeyOSVersion identifies the operating system release.
	KeyOSVersion = "OS Version"
	// KeyWiFiEnabled reports the Wi-Fi connection state.
	KeyWiFiEnabled = "WiFi enabled"
	// KeyMobileDataEnabled reports whether mobile data is enabled.
	KeyMobileDataEnabled = "Mobile Data enabled"
	// KeyGPSEnabled reports whether the GPS location provider is enabled.
	KeyGPSEnabled = "GPS enabled"
	// KeyScreenResolution carries the screen size formatted as WxH.
	KeyScreenResolution = "Screen Resolution"
	// KeyActivity names the screen the host was showing when feedback started.
	KeyActivity = "Activity"
	// KeyAppVersionName carries the host application's version name.
	KeyAppVersionName = "App Version Name"
	// KeyAppVersionCode carries the host application's version code.
	KeyAppVersionCode = "App Version Code"
)

// Bag is a string-keyed metadata map with last-write-wins semantics.
// The zero value is ready to use.
type Bag struct {
	mutex  sync.RWMutex
	values map[string]any
}

// NewBag returns an empty Bag.
func NewBag() *Bag {
	return &Bag{values: make(map[string]any)}
}

// Set stores value under key, replacing any earlier value.
func (bag *Bag) Set(key string, value any) {
	bag.mutex.Lock()
	defer bag.mutex.Unlock()
	if bag.values == nil {
		bag.values = make(map[string]any)
	}
	bag.values[key] = value
}

// Get returns the value stored under key.
func (bag *Bag) Get(key string) (any, bool) {
	bag.mutex.RLock()
	defer bag.mutex.RUnlock()
	value, found := bag.values[key]
	return value, found
}

// Len reports the number of stored keys.
func (bag *Bag) Len() int {
	bag.mutex.RLock()
	defer bag.mutex.RUnlock()
	return len(bag.values)
}

// Keys returns the stored keys in lexical order.
func (bag *Bag) Keys() []string {
	bag.mutex.RLock()
	defer bag.mutex.RUnlock()
	keys := make([]string, 0, len(bag.values))
	for key := range bag.values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Snapshot returns an independent copy of the stored values. It never returns nil.
func (bag *Bag) Snapshot() map[string]any {
	bag.mutex.RLock()
	defer bag.mutex.RUnlock()
	snapshot := make(map[string]any, len(bag.values))
	for key, value := range bag.values {
		snapshot[key] = value
	}
	return snapshot
}

// Merge copies every entry of values into the bag.
func (bag *Bag) Merge(values map[string]any) {
	bag.mutex.Lock()
	defer bag.mutex.Unlock()
	if bag.values == nil {
		bag.values = make(map[string]any, len(values))
	}
	for key, value := range values {
		bag.values[key] = value
	}
}

// Reset removes every entry.
func (bag *Bag) Reset() {
	bag.mutex.Lock()
	defer bag.mutex.Unlock()
	bag.values = make(map[string]any)
}
