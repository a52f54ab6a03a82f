package transforms

import (
	"sort"
	"strings"
)

// Entry is one descriptor mapping. Keys compare case-insensitively and every
// key read through the Entry is marked consumed so that leftover keys can be
// reported as unknown parameters.
type Entry struct {
	index    int
	kind     string
	values   map[string]string
	names    map[string]string
	consumed map[string]bool
}

func newEntry(index int, raw map[string]string) (*Entry, error) {
	e := &Entry{
		index:    index,
		values:   make(map[string]string, len(raw)),
		names:    make(map[string]string, len(raw)),
		consumed: make(map[string]bool, len(raw)),
	}
	for k, v := range raw {
		key := strings.ToLower(strings.TrimSpace(k))
		if prev, dup := e.names[key]; dup {
			return nil, invalidParam("keys %q and %q differ only by case", prev, k)
		}
		e.values[key] = v
		e.names[key] = k
	}
	return e, nil
}

// Index returns the entry's position in the descriptor.
func (e *Entry) Index() int {
	return e.index
}

// Kind returns the kind key as registered.
func (e *Entry) Kind() string {
	return e.kind
}

// Value returns the kind key's value.
func (e *Entry) Value() string {
	v, _ := e.Get(e.kind)
	return v
}

// Get returns the value for key and marks it consumed.
func (e *Entry) Get(key string) (string, bool) {
	k := strings.ToLower(key)
	v, ok := e.values[k]
	if ok {
		e.consumed[k] = true
	}
	return v, ok
}

// Has reports whether key is present without consuming it.
func (e *Entry) Has(key string) bool {
	_, ok := e.values[strings.ToLower(key)]
	return ok
}

// Bool parses key as a boolean, returning def when the key is absent.
func (e *Entry) Bool(key string, def bool) (bool, error) {
	v, ok := e.Get(key)
	if !ok {
		return def, nil
	}
	return parseBool(key, v)
}

// OneOf returns the key and value of exactly one of keys.
func (e *Entry) OneOf(keys ...string) (key, value string, err error) {
	found := 0
	for _, k := range keys {
		if v, ok := e.Get(k); ok {
			key, value = k, v
			found++
		}
	}
	if found != 1 {
		return "", "", invalidParam("exactly one of %s is required", strings.Join(keys, ", "))
	}
	return key, value, nil
}

// Unconsumed returns the original spelling of keys nobody read, sorted.
func (e *Entry) Unconsumed() []string {
	var keys []string
	for k, name := range e.names {
		if !e.consumed[k] {
			keys = append(keys, name)
		}
	}
	sort.Strings(keys)
	return keys
}

func parseBool(key, v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, invalidParam("%s must be true or false, got %q", key, v)
	}
}

// splitList splits a comma separated list, dropping empty items.
func splitList(v string) []string {
	var items []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
