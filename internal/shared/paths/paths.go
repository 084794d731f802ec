// Package paths provides the standardized filesystem layout the application
// manager shares with the rest of the platform. The jailer enforces the same
// layout, so changes here must stay in sync with its mount configuration.
package paths

import "path/filepath"

// Mount points
const (
	Storage = "/storage"
	Tmp     = "/tmp"
	Cache   = "/cache"
)

// Storage subdirectories
const (
	// SystemApps contains applications bundled with the platform image.
	SystemApps = "/storage/system-apps"

	// Apps contains installed third-party applications.
	Apps = "/storage/apps"

	// AppData contains per-app writable data.
	AppData = "/storage/appdata"
)

// CatalogDirs returns the directories scanned for application descriptors.
// They are scanned in order and a later descriptor replaces an earlier one
// for the same id, so an installed app shadows a bundled one.
func CatalogDirs() []string {
	return []string{SystemApps, Apps}
}

// App resolves per-app paths
type App struct {
	ID string
}

// AppPath returns the path resolver for one app.
func AppPath(appID string) App {
	return App{ID: appID}
}

// DataDir returns the app's writable data directory.
func (a App) DataDir() string {
	return filepath.Join(AppData, a.ID)
}

// CacheDir returns the app's cache directory.
func (a App) CacheDir() string {
	return filepath.Join(Cache, a.ID)
}

// TempDir returns the app's temp directory.
func (a App) TempDir() string {
	return filepath.Join(Tmp, a.ID)
}
