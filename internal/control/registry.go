package control

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// HandlerFunc answers one request. The returned text follows "ok ".
type HandlerFunc func(args *Args) (string, error)

type handlerEntry struct {
	fn    HandlerFunc
	usage string
}

// Registry maps request verbs to handlers.
type Registry struct {
	handlers map[string]*handlerEntry
	log      *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	reg := &Registry{
		handlers: make(map[string]*handlerEntry),
		log:      log,
	}
	reg.Register("help", "help", func(args *Args) (string, error) {
		if err := args.Err(); err != nil {
			return "", err
		}
		return reg.Help(), nil
	})
	return reg
}

// Register maps verb to fn. usage is shown by the help verb.
func (reg *Registry) Register(verb, usage string, fn HandlerFunc) {
	reg.handlers[verb] = &handlerEntry{fn: fn, usage: usage}
}

// Help lists every verb's usage, one per line.
func (reg *Registry) Help() string {
	verbs := make([]string, 0, len(reg.handlers))
	for v := range reg.handlers {
		verbs = append(verbs, v)
	}
	sort.Strings(verbs)
	lines := make([]string, len(verbs))
	for i, v := range verbs {
		lines[i] = reg.handlers[v].usage
	}
	return strings.Join(lines, "\n")
}

// Dispatch runs the handler for the first word of line.
func (reg *Registry) Dispatch(line string) (string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", fmt.Errorf("empty request")
	}
	verb := strings.ToLower(fields[0])
	entry, ok := reg.handlers[verb]
	if !ok {
		return "", fmt.Errorf("unknown verb %q", verb)
	}
	reg.log.Debug("control request", zap.String("verb", verb), zap.Int("args", len(fields)-1))
	return reg.safeCall(entry, verb, NewArgs(fields[1:]))
}

// safeCall keeps a bad request from taking down the simulation loop.
func (reg *Registry) safeCall(entry *handlerEntry, verb string, args *Args) (out string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reg.log.Error("control handler panic recovered", zap.String("verb", verb), zap.Any("panic", rec))
			err = fmt.Errorf("handler panic for %q: %v", verb, rec)
		}
	}()
	out, err = entry.fn(args)
	if err != nil {
		return "", fmt.Errorf("%w (usage: %s)", err, entry.usage)
	}
	return out, nil
}
