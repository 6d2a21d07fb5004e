// Package utils provides small helpers shared across packages.
package utils

import "strings"

// MaskKey masks an API key for safe logging (shows first 8 and last 4 chars).
// Keys shorter than 16 chars are fully hidden.
func MaskKey(key string) string {
	if key == "" {
		return "(empty)"
	}
	if len(key) < 16 {
		return "****"
	}
	return key[:8] + "..." + key[len(key)-4:]
}

// ShellQuote wraps arg in single quotes for display in a copy-pasteable
// command line. Nothing built with it is ever passed to a shell.
func ShellQuote(arg string) string {
	return "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
}
