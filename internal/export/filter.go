package export

import "strings"

// Filter drops configured event names before they enter the buffer.
type Filter struct {
	ignored map[string]struct{}
}

// NewFilter builds a filter from a comma-separated list of event names.
// Names are trimmed; empty entries and an empty list ignore nothing.
func NewFilter(eventsToIgnore string) *Filter {
	ignored := make(map[string]struct{})
	for _, name := range strings.Split(eventsToIgnore, ",") {
		name = strings.TrimSpace(name)
		if name != "" {
			ignored[name] = struct{}{}
		}
	}
	return &Filter{ignored: ignored}
}

// Ignored reports whether the named event must be dropped.
func (f *Filter) Ignored(eventName string) bool {
	_, ok := f.ignored[eventName]
	return ok
}
