//go:build darwin || linux

package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// version is set at build time via -ldflags "-X main.version=..."
var version string

func main() {
	setupLogging()

	if len(os.Args) > 1 && os.Args[1] == "relay" {
		runRelayWorker(os.Args[2:])
		return
	}

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version", "--version", "-v":
			printVersion()
			return
		case "help", "--help", "-h":
			printUsage()
			return
		}
	}

	runController(os.Args[1:])
}

func setupLogging() {
	if logPath := os.Getenv("FLOWCTL_LOG"); logPath != "" {
		if f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err == nil {
			log.SetOutput(f)
			return
		}
	}
	logPath := filepath.Join(os.TempDir(), fmt.Sprintf("flowctl-%d.log", os.Getpid()))
	if f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err == nil {
		log.SetOutput(f)
	}
}

// runController parses the controller's flags, builds the Topology and
// enters the config-file-then-interactive command loop.
func runController(args []string) {
	fs := flag.NewFlagSet("flowctl", flag.ContinueOnError)
	scratchDir := fs.String("scratch-dir", "", "scratch directory for channel FIFOs (default ./tmp)")
	adminAddr := fs.String("admin-addr", "", "loopback address for the admin HTTP/WebSocket surface (disabled if empty)")
	maxID := fs.Int("max-id", 0, "largest allowed node id (default 4096)")
	if err := fs.Parse(args); err != nil {
		os.Exit(2)
	}

	scratch := resolveFlag(*scratchDir, "FLOWCTL_SCRATCH_DIR", "./tmp")
	admin := resolveFlag(*adminAddr, "FLOWCTL_ADMIN_ADDR", "")
	max := *maxID
	if max == 0 {
		max = defaultMaxID
	}

	if err := os.MkdirAll(scratch, 0755); err != nil {
		log.Fatalf("flowctl: create scratch dir %s: %v", scratch, err)
	}

	exe, err := os.Executable()
	if err != nil {
		log.Fatalf("flowctl: resolve executable: %v", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}

	topo := NewTopology(scratch, max, exe)

	if admin != "" {
		go serveAdmin(admin, topo)
	}

	if configPath := fs.Arg(0); configPath != "" {
		runConfigFile(topo, configPath)
	}

	runInteractive(topo)
}

func printVersion() {
	v := version
	if v == "" {
		v = "dev"
	}
	fmt.Fprintf(os.Stderr, "flowctl %s\n", v)
}

func printUsage() {
	v := version
	if v == "" {
		v = "dev"
	}
	fmt.Fprintf(os.Stderr, `flowctl %s

Usage: flowctl [flags] [config-file]

Flags:
  -scratch-dir string   scratch directory for channel FIFOs (default "./tmp")
  -admin-addr string    loopback address for the admin HTTP/WebSocket surface
  -max-id int           largest allowed node id (default 4096)

Reads commands from config-file (if given), then from stdin until EOF.
Commands: node, connect, disconnect, inject, remove, change, debug
`, v)
}
