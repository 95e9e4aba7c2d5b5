package serde

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Format names.
const (
	FormatProtobuf = "PROTOBUF"
)

var (
	formatsMu sync.RWMutex
	formats   = make(map[string]Factory)
)

// RegisterFormat makes a factory available under name. Format packages call
// it from init; registering the same name twice panics.
func RegisterFormat(name string, factory Factory) {
	name = strings.ToUpper(name)
	formatsMu.Lock()
	defer formatsMu.Unlock()
	if factory == nil {
		panic("serde: RegisterFormat factory is nil")
	}
	if _, dup := formats[name]; dup {
		panic("serde: RegisterFormat called twice for " + name)
	}
	formats[name] = factory
}

// Lookup returns the factory registered under name, case-insensitively.
func Lookup(name string) (Factory, error) {
	formatsMu.RLock()
	defer formatsMu.RUnlock()
	f, ok := formats[strings.ToUpper(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
	return f, nil
}

// Formats lists the registered format names in order.
func Formats() []string {
	formatsMu.RLock()
	defer formatsMu.RUnlock()
	names := make([]string, 0, len(formats))
	for name := range formats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
