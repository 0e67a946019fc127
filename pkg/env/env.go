// Package env holds small helpers for reading process environment values
// outside the envconfig-managed Config struct.
package env

import "os"

// Get returns the value of the given environment variable or a fallback.
func Get(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
