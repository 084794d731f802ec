// Package utils provides request validation shared by the API surfaces.
package utils

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Payload size limits in bytes
const (
	MaxJSONSize   = 1 * 1024 * 1024 // request bodies
	MaxParamsSize = 64 * 1024       // launch parameter maps
	MaxIDLength   = 128
)

// AppIDPattern matches reverse-domain app identifiers such as
// com.example.browser. Single-segment ids are accepted too.
var AppIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+(\.[a-zA-Z0-9_-]+)*$`)

// ValidateAppID checks an app id for length, character set and null bytes.
func ValidateAppID(id string) error {
	if id == "" {
		return fmt.Errorf("app id is required")
	}
	if len(id) > MaxIDLength {
		return fmt.Errorf("app id must not exceed %d characters", MaxIDLength)
	}
	if strings.Contains(id, "\x00") {
		return fmt.Errorf("app id contains invalid characters")
	}
	if !AppIDPattern.MatchString(id) {
		return fmt.Errorf("app id contains invalid characters (alphanumeric, dots, hyphens and underscores allowed)")
	}
	return nil
}

// ValidateParams bounds the size and nesting of a launch parameter map so a
// hostile caller cannot park megabytes in the launch pipeline.
func ValidateParams(params map[string]interface{}) error {
	if params == nil {
		return nil
	}
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("parameters are not serializable: %w", err)
	}
	if len(data) > MaxParamsSize {
		return fmt.Errorf("parameters exceed %d bytes", MaxParamsSize)
	}
	return checkDepth(params, 0, 10)
}

func checkDepth(data interface{}, depth, maxDepth int) error {
	if depth > maxDepth {
		return fmt.Errorf("parameter nesting exceeds depth %d", maxDepth)
	}
	switch v := data.(type) {
	case map[string]interface{}:
		for _, value := range v {
			if err := checkDepth(value, depth+1, maxDepth); err != nil {
				return err
			}
		}
	case []interface{}:
		for _, value := range v {
			if err := checkDepth(value, depth+1, maxDepth); err != nil {
				return err
			}
		}
	}
	return nil
}
