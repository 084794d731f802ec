package catalog

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"

	"github.com/GriffinCanCode/AgentOS/appmanager/internal/shared/types"
)

// LoadDir scans dir for per-app descriptor files (appinfo.yaml inside each
// app directory, or any *.yaml directly under dir) and loads them into the
// catalog. The scanning flag is held for the duration so launches arriving
// mid-scan park on the scan gate.
func (c *Catalog) LoadDir(dir string) error {
	c.BeginScan()
	defer c.FinishScan()

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read catalog dir: %w", err)
	}

	var firstErr error
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			path = filepath.Join(path, "appinfo.yaml")
		} else if filepath.Ext(entry.Name()) != ".yaml" && filepath.Ext(entry.Name()) != ".yml" {
			continue
		}

		desc, err := loadDescriptor(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := c.Add(desc); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func loadDescriptor(path string) (*types.AppDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var desc types.AppDescriptor
	if err := yaml.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &desc, nil
}
