//go:build darwin || linux

package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
)

// relayHandle is the controller's view of a running fanout relay: the
// subprocess reads source's output and copies each record verbatim to every
// sink's input.
type relayHandle struct {
	source int
	sinks  []int
	pid    int
	proc   childProcess
}

// spawnRelay re-execs the controller binary as "<exe> relay ..." so the
// fanout loop runs in its own process, the same way maybeStartStreamer
// re-execs itself to run a detached streamer.
func spawnRelay(exe, scratchDir string, source int, sinks []int) (*relayHandle, error) {
	sinkArgs := make([]string, len(sinks))
	for i, s := range sinks {
		sinkArgs[i] = strconv.Itoa(s)
	}
	argv := []string{exe, "relay",
		"-scratch", scratchDir,
		"-source", strconv.Itoa(source),
		"-sinks", strings.Join(sinkArgs, ","),
	}
	res, err := startChildProcess(argv, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("spawn relay for source %d: %w", source, err)
	}
	return &relayHandle{
		source: source,
		sinks:  append([]int(nil), sinks...),
		pid:    res.pid,
		proc:   res.proc,
	}, nil
}

// teardownRelay runs the cooperative stop sequence: signal the relay, write
// a sentinel so a blocked read returns, then reap it. Order matters — the
// signal must land before the sentinel, or the relay could read the
// sentinel, loop, and block again before its handler has set the flag.
func teardownRelay(scratchDir string, r *relayHandle) {
	if r.proc != nil {
		r.proc.Signal(syscall.SIGUSR1)
	}
	if err := unblock(scratchDir, r.source); err != nil {
		log.Printf("teardown relay %d: unblock: %v", r.source, err)
	}
	if r.proc != nil {
		r.proc.Wait()
	}
}

// runRelayWorker is the entry point for the "relay" re-exec subcommand. It
// never returns except by process exit.
func runRelayWorker(args []string) {
	fs := flag.NewFlagSet("relay", flag.ExitOnError)
	scratch := fs.String("scratch", "./tmp", "scratch directory holding the channel FIFOs")
	source := fs.Int("source", -1, "source node id")
	sinksFlag := fs.String("sinks", "", "comma-separated sink node ids")
	fs.Parse(args)

	if *source < 0 || *sinksFlag == "" {
		log.Fatalf("relay: missing -source or -sinks")
	}
	var sinks []int
	for _, tok := range strings.Split(*sinksFlag, ",") {
		id, err := strconv.Atoi(tok)
		if err != nil {
			log.Fatalf("relay: bad sink id %q: %v", tok, err)
		}
		sinks = append(sinks, id)
	}

	var shouldStop atomic.Bool
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGUSR1)
	go func() {
		for range sigCh {
			shouldStop.Store(true)
		}
	}()

	in, err := os.OpenFile(outputPath(*scratch, *source), os.O_RDONLY, 0)
	if err != nil {
		log.Fatalf("relay: open source %d output: %v", *source, err)
	}
	defer in.Close()

	sinkWriters := make([]*os.File, len(sinks))
	for i, s := range sinks {
		w, err := os.OpenFile(inputPath(*scratch, s), os.O_WRONLY, 0)
		if err != nil {
			log.Fatalf("relay: open sink %d input: %v", s, err)
		}
		sinkWriters[i] = w
	}
	defer func() {
		for _, w := range sinkWriters {
			w.Close()
		}
	}()

	buf := make([]byte, pipeAtomic)
	for {
		n, rerr := in.Read(buf)
		if n > 0 {
			rec := buf[:n]
			if !(n == 1 && rec[0] == sentinel) {
				for _, w := range sinkWriters {
					if _, werr := w.Write(rec); werr != nil {
						log.Printf("relay %d: write to sink failed: %v", *source, werr)
					}
				}
			}
		}
		if rerr != nil {
			return
		}
		if shouldStop.Load() {
			return
		}
	}
}
