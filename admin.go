//go:build darwin || linux

package main

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cloudflare/tableflip"
	"nhooyr.io/websocket"
)

// serveAdmin runs the loopback-only admin HTTP/WebSocket surface. A SIGHUP
// triggers a tableflip upgrade: a replacement process is forked, and once
// it signals readiness this process shuts its admin server down (giving
// in-flight requests up to 10 seconds) and serveAdmin returns; the rest of
// the controller keeps running. An address whose host is not a loopback
// address is refused.
func serveAdmin(addr string, topo *Topology) {
	host, _, err := net.SplitHostPort(addr)
	if ip := net.ParseIP(host); err != nil || (host != "localhost" && (ip == nil || !ip.IsLoopback())) {
		log.Printf("admin: refusing non-loopback address %q", addr)
		return
	}

	upg, err := tableflip.New(tableflip.Options{})
	if err != nil {
		log.Printf("admin: tableflip init failed, continuing without graceful restart: %v", err)
		serveAdminOnce(addr, topo)
		return
	}
	defer upg.Stop()

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGHUP)
		for range sig {
			log.Printf("admin: SIGHUP received, upgrading listener")
			if err := upg.Upgrade(); err != nil {
				log.Printf("admin: upgrade failed: %v", err)
			}
		}
	}()

	ln, err := upg.Listen("tcp", addr)
	if err != nil {
		log.Printf("admin: listen %s: %v", addr, err)
		return
	}
	defer ln.Close()

	srv := &http.Server{Handler: newAdminMux(topo)}
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("admin: serve error: %v", err)
		}
	}()

	if err := upg.Ready(); err != nil {
		log.Printf("admin: ready error: %v", err)
		return
	}
	log.Printf("admin: listening on %s", addr)

	<-upg.Exit()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
}

func serveAdminOnce(addr string, topo *Topology) {
	log.Printf("admin: listening on %s (no graceful restart)", addr)
	if err := http.ListenAndServe(addr, newAdminMux(topo)); err != nil {
		log.Printf("admin: serve error: %v", err)
	}
}

func newAdminMux(topo *Topology) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/topology", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, topo.Snapshot())
	})
	mux.HandleFunc("/ws/events", func(w http.ResponseWriter, r *http.Request) {
		handleEventsWS(w, r, topo)
	})
	return mux
}

// handleEventsWS accepts a server-side WebSocket, streams every published
// Event to it, and in the other direction treats inbound text frames as
// "inject <id> <cmd> <args...>" submissions.
func handleEventsWS(w http.ResponseWriter, r *http.Request, topo *Topology) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Printf("admin: ws accept: %v", err)
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	sub := topo.events.Subscribe()
	defer topo.events.Unsubscribe(sub)

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			handleRemoteCommand(topo, string(data))
		}
	}()

	for {
		select {
		case ev, ok := <-sub:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "subscriber dropped")
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = conn.Write(wctx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				return
			}
		case <-readDone:
			return
		case <-ctx.Done():
			return
		}
	}
}

func handleRemoteCommand(topo *Topology, line string) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "inject ") {
		log.Printf("admin: ignoring non-inject remote command: %q", line)
		return
	}
	if _, err := execute(topo, line); err != nil {
		log.Printf("admin: remote inject failed: %v", err)
	}
}
