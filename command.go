//go:build darwin || linux

package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// execute tokenizes and runs a single command line against topo, returning
// the verb (for confirmation-line formatting) and any error.
func execute(topo *Topology, line string) (string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil
	}
	verb, args := fields[0], fields[1:]

	switch verb {
	case "node":
		id, rest, err := firstIntArg("node", args)
		if err != nil {
			return verb, err
		}
		if len(rest) == 0 {
			return verb, badCommand("node: usage: node <id> <cmd> [args...]")
		}
		return verb, topo.Node(id, rest)

	case "connect":
		ids, err := intArgs("connect", args)
		if err != nil {
			return verb, err
		}
		if len(ids) < 2 {
			return verb, badCommand("connect: usage: connect <source> <sink...>")
		}
		return verb, topo.Connect(ids[0], ids[1:])

	case "disconnect":
		ids, err := intArgs("disconnect", args)
		if err != nil {
			return verb, err
		}
		if len(ids) != 2 {
			return verb, badCommand("disconnect: usage: disconnect <source> <sink>")
		}
		return verb, topo.Disconnect(ids[0], ids[1])

	case "inject":
		id, rest, err := firstIntArg("inject", args)
		if err != nil {
			return verb, err
		}
		if len(rest) == 0 {
			return verb, badCommand("inject: usage: inject <id> <cmd> [args...]")
		}
		return verb, topo.Inject(id, rest)

	case "remove":
		ids, err := intArgs("remove", args)
		if err != nil {
			return verb, err
		}
		if len(ids) != 1 {
			return verb, badCommand("remove: usage: remove <id>")
		}
		return verb, topo.Remove(ids[0])

	case "change":
		id, rest, err := firstIntArg("change", args)
		if err != nil {
			return verb, err
		}
		if len(rest) == 0 {
			return verb, badCommand("change: usage: change <id> <cmd> [args...]")
		}
		return verb, topo.Change(id, rest)

	default:
		return verb, badCommand(fmt.Sprintf("unknown command %q", verb))
	}
}

func firstIntArg(op string, args []string) (int, []string, error) {
	if len(args) == 0 {
		return 0, nil, badCommand(op + ": missing id")
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, nil, badCommand(op + ": bad id " + strconv.Quote(args[0]))
	}
	return id, args[1:], nil
}

func intArgs(op string, args []string) ([]int, error) {
	out := make([]int, 0, len(args))
	for _, a := range args {
		v, err := strconv.Atoi(a)
		if err != nil {
			return nil, badCommand(op + ": bad id " + strconv.Quote(a))
		}
		out = append(out, v)
	}
	return out, nil
}

func badCommand(msg string) error {
	return &TopologyError{Kind: ErrBadCommand, Op: "command", Err: errors.New(msg)}
}

func confirmationLine(verb string) string {
	switch verb {
	case "node":
		return "ok: node created"
	case "connect":
		return "ok: nodes connected"
	case "disconnect":
		return "ok: nodes disconnected"
	case "inject":
		return "ok: inject started"
	case "remove":
		return "ok: node removed"
	case "change":
		return "ok: node changed"
	default:
		return "ok"
	}
}

func errorLine(err error) string {
	var te *TopologyError
	if errors.As(err, &te) {
		return fmt.Sprintf("error[%s]: %v", te.Kind, te.Err)
	}
	return fmt.Sprintf("error: %v", err)
}

func dispatch(topo *Topology, line string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return
	}
	if trimmed == "debug" {
		runDebug(topo)
		return
	}
	verb, err := execute(topo, line)
	if verb == "" && err == nil {
		return
	}
	if err != nil {
		fmt.Println(errorLine(err))
		return
	}
	fmt.Println(confirmationLine(verb))
}

// runDebug forwards the controller's own stdin to node 1's input verbatim,
// byte for byte, until EOF — a pure pass-through with no parsing, matching
// the original's debug command.
func runDebug(topo *Topology) {
	f, err := createInjectPipe(topo.scratch, 1)
	if err != nil {
		fmt.Println(errorLine(&TopologyError{Kind: ErrSyscallFailure, Op: "debug", Err: err}))
		return
	}
	defer f.Close()
	fmt.Println("* debug mode: forwarding stdin to node 1, Ctrl-D to exit *")
	io.Copy(f, os.Stdin)
	fmt.Println("debug: input closed")
}

// runInteractive reads commands from stdin until EOF, dispatching one at a
// time.
func runInteractive(topo *Topology) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		dispatch(topo, scanner.Text())
	}
}

// runConfigFile dispatches every line of path in order before the
// interactive loop takes over. The for loop is itself the mutual-exclusion
// gate: no two commands are ever dispatched concurrently here, the same
// guarantee the original's busy flag gave its single-threaded interpreter.
func runConfigFile(topo *Topology, path string) {
	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "flowctl: open config file %s: %v\n", path, err)
		return
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		dispatch(topo, scanner.Text())
	}
}
