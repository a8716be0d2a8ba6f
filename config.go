//go:build darwin || linux

package main

import "os"

const defaultMaxID = 4096

// resolveFlag returns the flag value if set, else the named environment
// variable, else def — the flag > env > default precedence used throughout
// the controller's startup.
func resolveFlag(flagVal, envKey, def string) string {
	if flagVal != "" {
		return flagVal
	}
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return def
}
