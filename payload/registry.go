package payload

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	mu     sync.RWMutex
	byName = map[string]Codec{}
	byType = map[string]Codec{}
)

// Register adds a codec under its name and content type.
func Register(codec Codec) {
	mu.Lock()
	defer mu.Unlock()
	byName[strings.ToLower(codec.Name())] = codec
	byType[codec.ContentType()] = codec
}

// Get returns the codec for a content type.
func Get(contentType string) (Codec, bool) {
	mu.RLock()
	defer mu.RUnlock()
	c, ok := byType[contentType]
	return c, ok
}

// Lookup returns the codec for a name or content type, ignoring case for
// names. An empty name selects the default codec.
func Lookup(name string) (Codec, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Default(), nil
	}
	mu.RLock()
	defer mu.RUnlock()
	if c, ok := byName[strings.ToLower(name)]; ok {
		return c, nil
	}
	if c, ok := byType[name]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("payload: unknown codec %q", name)
}

// Names returns the registered codec names, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(byName))
	for n := range byName {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func init() {
	Register(JSON{})
	Register(MsgPack{})
	Register(Proto{})
}
