// navctl sends one request to a running navcore control port and prints
// the reply.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/l1jgo/navcore/internal/control"
)

func main() {
	addr := "127.0.0.1:9465"
	if a := os.Getenv("NAVCORE_CONTROL"); a != "" {
		addr = a
	}
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: navctl <verb> [args...]   (navctl help lists verbs)")
		os.Exit(1)
	}

	c, err := control.Dial(addr, 5*time.Second)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer c.Close()

	out, err := c.Do(strings.Join(os.Args[1:], " "))
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		c.Close()
		os.Exit(1)
	}
	if out != "" {
		fmt.Println(out)
	}
}
