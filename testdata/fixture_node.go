// fixture_node is a minimal stand-in for a real filter/sink binary, used by
// the integration tests to exercise real node processes without depending
// on anything from the host's PATH beyond a shell.
//
// Modes (selected by FLOWCTL_FIXTURE_MODE):
//
// echo (default) — copy stdin to stdout verbatim, flushing after every line
// so a downstream relay observes records promptly.
//
// upper — uppercase each line before writing it out.
//
// count — replace each input line with a running 1-based line count.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

func main() {
	mode := os.Getenv("FLOWCTL_FIXTURE_MODE")
	if mode == "" {
		mode = "echo"
	}

	reader := bufio.NewReader(os.Stdin)
	writer := bufio.NewWriter(os.Stdout)
	defer writer.Flush()

	n := 0
	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			n++
			switch mode {
			case "upper":
				fmt.Fprint(writer, strings.ToUpper(line))
			case "count":
				fmt.Fprintf(writer, "%d\n", n)
			default:
				fmt.Fprint(writer, line)
			}
			writer.Flush()
		}
		if err != nil {
			return
		}
	}
}
