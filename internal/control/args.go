package control

import (
	"fmt"
	"strconv"
	"strings"
)

// Args reads the fields of a request after its verb. The first conversion
// failure is remembered and every later read returns a zero value, so a
// handler reads all fields and checks Err once.
type Args struct {
	fields []string
	off    int
	err    error
}

func NewArgs(fields []string) *Args { return &Args{fields: fields} }

func (a *Args) next(what string) (string, bool) {
	if a.err != nil {
		return "", false
	}
	if a.off >= len(a.fields) {
		a.err = fmt.Errorf("missing %s (argument %d)", what, a.off+1)
		return "", false
	}
	f := a.fields[a.off]
	a.off++
	return f, true
}

func (a *Args) Int(what string) int {
	f, ok := a.next(what)
	if !ok {
		return 0
	}
	v, err := strconv.Atoi(f)
	if err != nil {
		a.err = fmt.Errorf("%s: %q is not an integer", what, f)
	}
	return v
}

func (a *Args) Uint(what string) uint64 {
	f, ok := a.next(what)
	if !ok {
		return 0
	}
	v, err := strconv.ParseUint(f, 10, 64)
	if err != nil {
		a.err = fmt.Errorf("%s: %q is not an unsigned integer", what, f)
	}
	return v
}

func (a *Args) Float(what string) float64 {
	f, ok := a.next(what)
	if !ok {
		return 0
	}
	v, err := strconv.ParseFloat(f, 64)
	if err != nil {
		a.err = fmt.Errorf("%s: %q is not a number", what, f)
	}
	return v
}

func (a *Args) String(what string) string {
	f, _ := a.next(what)
	return f
}

// OptFloat reads a number if one is left, otherwise def.
func (a *Args) OptFloat(what string, def float64) float64 {
	if a.off >= len(a.fields) {
		return def
	}
	return a.Float(what)
}

// OptString reads a field if one is left, otherwise def.
func (a *Args) OptString(def string) string {
	if a.err != nil || a.off >= len(a.fields) {
		return def
	}
	f := a.fields[a.off]
	a.off++
	return f
}

// Rest joins the unread fields.
func (a *Args) Rest() string {
	if a.off >= len(a.fields) {
		return ""
	}
	s := strings.Join(a.fields[a.off:], " ")
	a.off = len(a.fields)
	return s
}

// Err reports the first bad or missing field, or extra fields.
func (a *Args) Err() error {
	if a.err == nil && a.off < len(a.fields) {
		return fmt.Errorf("unexpected argument %q", a.fields[a.off])
	}
	return a.err
}
