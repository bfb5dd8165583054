package control

import (
	"fmt"
	"strings"
)

// ReplyLimit is the largest text a handler can return and still fit in one
// frame after the "ok " prefix.
const ReplyLimit = MaxFrame - len("ok ")

// tailRoom is kept free for the "... N more" line.
const tailRoom = 32

// JoinLines joins lines with newlines. When the result would exceed
// ReplyLimit the trailing lines are dropped and replaced by "... N more".
func JoinLines(lines []string) string {
	size := 0
	for i, l := range lines {
		add := len(l)
		if i > 0 {
			add++
		}
		if size+add > ReplyLimit-tailRoom {
			tail := fmt.Sprintf("... %d more", len(lines)-i)
			if i == 0 {
				return tail
			}
			return strings.Join(lines[:i], "\n") + "\n" + tail
		}
		size += add
	}
	return strings.Join(lines, "\n")
}

// FormatReply renders a handler result as the line sent back to the client.
// Results that cannot fit in a frame become an error reply.
func FormatReply(out string, err error) string {
	var reply string
	switch {
	case err != nil:
		reply = "err " + err.Error()
	case out == "":
		return "ok"
	default:
		reply = "ok " + out
	}
	if len(reply) > MaxFrame {
		return fmt.Sprintf("err reply too large (%d bytes)", len(reply))
	}
	return reply
}
