package wire

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"stagecraft"
)

// The registry maps wire type names to Go types. Games register every
// message and token type they replicate, usually from an init function, the
// same way gob callers do. Both ends of a pipe must register the same set.
var (
	registryMu   sync.RWMutex
	messageTypes = map[string]reflect.Type{}
	tokenTypes   = map[string]reflect.Type{}
)

// RegisterMessage registers a message type under its Go type name. The
// prototype must be a pointer to the concrete message struct.
func RegisterMessage(prototype stagecraft.Message) {
	register(messageTypes, "message", reflect.TypeOf(prototype))
}

// RegisterToken registers a token type under its Go type name. The
// prototype must be a pointer to the concrete token struct.
func RegisterToken(prototype stagecraft.AnyToken) {
	register(tokenTypes, "token", reflect.TypeOf(prototype))
}

func register(table map[string]reflect.Type, kind string, t reflect.Type) {
	// reflect.TypeOf(nil interface) is a nil Type, not a Kind.
	if t == nil || t.Kind() != reflect.Pointer || t.Elem().Kind() != reflect.Struct {
		panic(fmt.Sprintf("wire: %s prototype must be a struct pointer, got %s", kind, t))
	}
	elem := t.Elem()
	name := elem.Name()
	if name == "" {
		panic(fmt.Sprintf("wire: can't register unnamed %s type %s", kind, t))
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	if existing, ok := table[name]; ok && existing != elem {
		panic(fmt.Sprintf("wire: %s name %q already registered for %s", kind, name, existing))
	}
	table[name] = elem
}

func lookupMessage(name string) (reflect.Type, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	t, ok := messageTypes[name]
	return t, ok
}

func lookupToken(name string) (reflect.Type, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	t, ok := tokenTypes[name]
	return t, ok
}

// registeredNames returns the sorted type names in a table, for schema
// generation and diagnostics.
func registeredNames(table map[string]reflect.Type) []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegisteredMessages lists the registered message type names.
func RegisteredMessages() []string {
	return registeredNames(messageTypes)
}

// RegisteredTokens lists the registered token type names.
func RegisteredTokens() []string {
	return registeredNames(tokenTypes)
}
