package paths

import "testing"

func TestCatalogDirsOrder(t *testing.T) {
	dirs := CatalogDirs()
	if len(dirs) != 2 {
		t.Fatalf("Expected two catalog dirs, got %d", len(dirs))
	}
	// Bundled apps must scan first so a later installed scan shadows them.
	if dirs[0] != SystemApps || dirs[1] != Apps {
		t.Errorf("Expected [%s %s], got %v", SystemApps, Apps, dirs)
	}
}

func TestAppDirs(t *testing.T) {
	app := AppPath("com.test.app")
	if got := app.DataDir(); got != "/storage/appdata/com.test.app" {
		t.Errorf("Unexpected data dir %s", got)
	}
	if got := app.CacheDir(); got != "/cache/com.test.app" {
		t.Errorf("Unexpected cache dir %s", got)
	}
	if got := app.TempDir(); got != "/tmp/com.test.app" {
		t.Errorf("Unexpected temp dir %s", got)
	}
}
