package recording

import (
	"fmt"
	"sort"
	"sync"
)

// Profile is a function that creates a new device with a fixed configuration.
// Profiles are registered via Register() and called by NewProfileDevice().
type Profile func() *Device

// Registry state - protected by mutex for thread-safe access.
var (
	registryMu sync.RWMutex
	profiles   = make(map[string]Profile)
)

func init() {
	Register("single-queue", func() *Device { return NewDevice(WithComputeQueues(1)) })
	Register("async-compute", func() *Device { return NewDevice(WithComputeQueues(2)) })
}

// Register registers a device profile with the given name.
//
// Register panics if:
//   - profile is nil
//   - a profile with the same name is already registered
func Register(name string, profile Profile) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if profile == nil {
		panic("recording: Register profile is nil")
	}
	if _, dup := profiles[name]; dup {
		panic("recording: Register called twice for " + name)
	}
	profiles[name] = profile
}

// Unregister removes a profile from the registry.
// If the profile is not registered, this is a no-op.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(profiles, name)
}

// NewProfileDevice creates a device from a registered profile.
func NewProfileDevice(name string) (*Device, error) {
	registryMu.RLock()
	profile, ok := profiles[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("recording: unknown device profile %q", name)
	}
	return profile(), nil
}

// Profiles returns a sorted list of all registered profile names.
func Profiles() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered reports whether a profile with the given name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := profiles[name]
	return ok
}
