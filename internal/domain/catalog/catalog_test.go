package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/GriffinCanCode/AgentOS/appmanager/internal/shared/types"
)

func TestAddAndGet(t *testing.T) {
	c := New()
	err := c.Add(&types.AppDescriptor{ID: "com.test.app", Kind: types.RuntimeWeb})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	desc, ok := c.GetAppByID("com.test.app")
	if !ok {
		t.Fatal("Expected descriptor")
	}
	if desc.Kind != types.RuntimeWeb {
		t.Errorf("Expected web kind, got %s", desc.Kind)
	}
}

func TestAddRejectsUnknownKind(t *testing.T) {
	c := New()
	if err := c.Add(&types.AppDescriptor{ID: "com.test.app", Kind: "flash"}); err == nil {
		t.Error("Expected unsupported kind to be rejected")
	}
	if err := c.Add(&types.AppDescriptor{Kind: types.RuntimeWeb}); err == nil {
		t.Error("Expected empty id to be rejected")
	}
}

func TestNativeDefaultsInterfaceVersion(t *testing.T) {
	c := New()
	c.Add(&types.AppDescriptor{ID: "com.test.native", Kind: types.RuntimeNative})
	desc, _ := c.GetAppByID("com.test.native")
	if desc.InterfaceVersion != 1 {
		t.Errorf("Expected interface version 1, got %d", desc.InterfaceVersion)
	}
}

func TestScanGateNotification(t *testing.T) {
	c := New()
	notified := false
	c.OnScanFinished(func() { notified = true })

	c.BeginScan()
	if !c.IsScanning() {
		t.Error("Expected scanning flag")
	}
	c.FinishScan()
	if c.IsScanning() {
		t.Error("Expected scanning flag cleared")
	}
	if !notified {
		t.Error("Expected scan-finished notification")
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	appDir := filepath.Join(dir, "com.test.browser")
	if err := os.MkdirAll(appDir, 0o755); err != nil {
		t.Fatal(err)
	}
	descriptor := "id: com.test.browser\ntitle: Browser\ntype: web\n"
	if err := os.WriteFile(filepath.Join(appDir, "appinfo.yaml"), []byte(descriptor), 0o644); err != nil {
		t.Fatal(err)
	}

	c := New()
	if err := c.LoadDir(dir); err != nil {
		t.Fatalf("LoadDir failed: %v", err)
	}

	desc, ok := c.GetAppByID("com.test.browser")
	if !ok {
		t.Fatal("Expected loaded descriptor")
	}
	if desc.Title != "Browser" {
		t.Errorf("Expected title, got %s", desc.Title)
	}
	if c.IsScanning() {
		t.Error("Expected scan to be finished after LoadDir")
	}
}

func writeDescriptor(t *testing.T, root, id, title string) {
	t.Helper()
	appDir := filepath.Join(root, id)
	if err := os.MkdirAll(appDir, 0o755); err != nil {
		t.Fatal(err)
	}
	descriptor := "id: " + id + "\ntitle: " + title + "\ntype: web\n"
	if err := os.WriteFile(filepath.Join(appDir, "appinfo.yaml"), []byte(descriptor), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestInstalledAppShadowsBundledApp(t *testing.T) {
	bundled := t.TempDir()
	installed := t.TempDir()
	writeDescriptor(t, bundled, "com.test.browser", "Bundled Browser")
	writeDescriptor(t, installed, "com.test.browser", "Installed Browser")

	// Directories load in catalog order, bundled first. The later scan
	// replaces the earlier entry for the same id.
	c := New()
	if err := c.LoadDir(bundled); err != nil {
		t.Fatalf("LoadDir failed: %v", err)
	}
	if err := c.LoadDir(installed); err != nil {
		t.Fatalf("LoadDir failed: %v", err)
	}

	desc, ok := c.GetAppByID("com.test.browser")
	if !ok {
		t.Fatal("Expected loaded descriptor")
	}
	if desc.Title != "Installed Browser" {
		t.Errorf("Expected installed descriptor to win, got %s", desc.Title)
	}
}
