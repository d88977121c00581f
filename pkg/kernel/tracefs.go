package kernel

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
	"github.com/golang/glog"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"golang.org/x/sys/unix"
)

const (
	availableEvents    = "available_events"
	availableFunctions = "available_filter_functions"
)

// tracefs holds the traceable events and functions as listed by the tracing
// filesystem. Both lists are optional: a nil set means the host could not
// tell.
type tracefs struct {
	root string

	events    map[string]struct{}
	eventList []string
	// target -> first group:target in eventList
	eventTargets map[string]string

	functions    map[string]struct{}
	functionList []string
}

// findTracefs returns the first root exposing at least one of the listing
// files.
func findTracefs(roots []string) string {
	for _, root := range roots {
		for _, file := range []string{availableEvents, availableFunctions} {
			if unix.Access(filepath.Join(root, file), unix.R_OK) == nil {
				return root
			}
		}
	}
	return ""
}

func loadTracefs(roots []string) *tracefs {
	this := &tracefs{root: findTracefs(roots)}
	if this.root == "" {
		glog.Warningf("No tracefs found in %v, traceability checks are unavailable", roots)
		return this
	}

	events, err := readSet(filepath.Join(this.root, availableEvents))
	if err != nil {
		glog.Warningf("Failed to read traceable events: %v", err)
	} else {
		this.setEvents(events)
	}

	functions, err := readSet(filepath.Join(this.root, availableFunctions))
	if err != nil {
		glog.Warningf("Failed to read traceable functions: %v", err)
	} else {
		this.setFunctions(functions)
	}

	glog.V(2).Infof("Loaded tracefs from %s (events=%d, functions=%d)",
		this.root, len(this.eventList), len(this.functionList))
	return this
}

func (t *tracefs) setEvents(events map[string]struct{}) {
	t.events = events
	t.eventList = maps.Keys(events)
	slices.Sort(t.eventList)
	t.eventTargets = make(map[string]string, len(t.eventList))
	for _, event := range t.eventList {
		_, target, ok := strings.Cut(event, ":")
		if !ok {
			continue
		}
		if _, seen := t.eventTargets[target]; !seen {
			t.eventTargets[target] = event
		}
	}
}

func (t *tracefs) setFunctions(functions map[string]struct{}) {
	t.functions = functions
	t.functionList = maps.Keys(functions)
	slices.Sort(t.functionList)
}

func (t *tracefs) isEventTraceable(name string) Answer {
	if t.events == nil {
		return Unavailable
	}
	_, ok := t.events[name]
	return AnswerOf(ok)
}

func (t *tracefs) isFunctionTraceable(name string) Answer {
	if t.functions == nil {
		return Unavailable
	}
	_, ok := t.functions[name]
	return AnswerOf(ok)
}

func (t *tracefs) findMatchingEvent(target string) (string, bool) {
	event, ok := t.eventTargets[target]
	return event, ok
}

func (t *tracefs) matchingEvents(pattern glob.Glob) ([]string, error) {
	if t.events == nil {
		return nil, ErrTracefsUnavailable
	}
	return matchAll(t.eventList, pattern), nil
}

func matchAll(names []string, pattern glob.Glob) []string {
	var ret []string
	for _, name := range names {
		if pattern.Match(name) {
			ret = append(ret, name)
		}
	}
	return ret
}

// readSet reads a tracefs listing. Only the first field of a line is kept,
// dropping the "[module]" annotation of available_filter_functions.
func readSet(path string) (map[string]struct{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	ret := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.IndexAny(line, " \t"); i != -1 {
			line = line[:i]
		}
		ret[line] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ret, nil
}
