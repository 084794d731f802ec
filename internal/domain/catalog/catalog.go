// Package catalog stores installed application descriptors.
//
// The lifecycle orchestrator consults it for descriptor lookups and for the
// rescan gate: launches arriving mid-rescan are parked until the catalog
// reports the scan finished.
package catalog

import (
	"fmt"
	"sync"

	"github.com/GriffinCanCode/AgentOS/appmanager/internal/shared/types"
)

// Catalog is an in-memory descriptor store
type Catalog struct {
	mu        sync.RWMutex
	apps      map[string]*types.AppDescriptor
	scanning  bool
	scanSubs  []func()
	validKind map[types.RuntimeKind]bool
}

// New creates an empty catalog
func New() *Catalog {
	return &Catalog{
		apps: make(map[string]*types.AppDescriptor),
		validKind: map[types.RuntimeKind]bool{
			types.RuntimeNative: true,
			types.RuntimeWeb:    true,
			types.RuntimeQML:    true,
		},
	}
}

// Add registers a descriptor, replacing any previous entry for its id.
func (c *Catalog) Add(desc *types.AppDescriptor) error {
	if desc.ID == "" {
		return fmt.Errorf("app descriptor has no id")
	}
	if !c.validKind[desc.Kind] {
		return fmt.Errorf("app %s has unsupported runtime kind %q", desc.ID, desc.Kind)
	}
	if desc.Kind == types.RuntimeNative && desc.InterfaceVersion == 0 {
		desc.InterfaceVersion = 1
	}

	c.mu.Lock()
	c.apps[desc.ID] = desc
	c.mu.Unlock()
	return nil
}

// Remove deletes the descriptor for id.
func (c *Catalog) Remove(id string) {
	c.mu.Lock()
	delete(c.apps, id)
	c.mu.Unlock()
}

// GetAppByID returns the descriptor for id.
func (c *Catalog) GetAppByID(id string) (*types.AppDescriptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	desc, ok := c.apps[id]
	return desc, ok
}

// List returns a snapshot of all descriptors.
func (c *Catalog) List() []*types.AppDescriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*types.AppDescriptor, 0, len(c.apps))
	for _, d := range c.apps {
		out = append(out, d)
	}
	return out
}

// IsScanning reports whether a catalog rescan is in progress.
func (c *Catalog) IsScanning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.scanning
}

// BeginScan marks the catalog as mid-rescan.
func (c *Catalog) BeginScan() {
	c.mu.Lock()
	c.scanning = true
	c.mu.Unlock()
}

// FinishScan clears the scanning flag and notifies subscribers.
func (c *Catalog) FinishScan() {
	c.mu.Lock()
	c.scanning = false
	subs := make([]func(), len(c.scanSubs))
	copy(subs, c.scanSubs)
	c.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}

// OnScanFinished subscribes to scan-finished notifications.
func (c *Catalog) OnScanFinished(fn func()) {
	c.mu.Lock()
	c.scanSubs = append(c.scanSubs, fn)
	c.mu.Unlock()
}
