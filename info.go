package mlearn

import (
	json "github.com/goccy/go-json"
)

// InfoJSON renders an estimator's Info() map as JSON for debug logging and
// introspection. Models themselves are never persisted.
func InfoJSON(info map[string]any) string {
	b, err := json.Marshal(info)
	if err != nil {
		LogWarning("mlearn.InfoJSON: %v", err)
		return "{}"
	}
	return string(b)
}
