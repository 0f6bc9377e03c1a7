package reporting

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/holmdigital/a11y-cli/api/schemas"
)

// json mirrors encoding/json so output is stable across runs and can be parsed
// back by any standard decoder.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// RenderJSON serializes result as indented JSON. Parsing the output back into a
// ScanResult and rendering again yields identical bytes.
func RenderJSON(result *schemas.ScanResult) (string, error) {
	if result == nil {
		return "", fmt.Errorf("cannot render a nil scan result")
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode scan result: %w", err)
	}
	return string(data) + "\n", nil
}

// ParseJSON decodes a result produced by RenderJSON.
func ParseJSON(data []byte) (*schemas.ScanResult, error) {
	var result schemas.ScanResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode scan result: %w", err)
	}
	return &result, nil
}
