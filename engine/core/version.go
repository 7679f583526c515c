package core

import "os"

// GetVersion returns the API version segment used in route paths.
func GetVersion() string {
	if version := os.Getenv("SEQUENTRY_API_VERSION"); version != "" {
		return version
	}
	return "v0"
}
