package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/rbaliyan/tsdispatch"
	"gopkg.in/yaml.v3"
)

// loadHost reads a YAML file into a flat host configuration. Nested maps
// become dotted keys and lists become comma separated values, so
//
//	tsd:
//	  dispatch:
//	    consumers: [logging, nats]
//
// yields tsd.dispatch.consumers = "logging,nats".
func loadHost(path string) (tsdispatch.MapHost, error) {
	host := tsdispatch.MapHost{}
	if path == "" {
		return host, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	flatten(host, "", doc)
	return host, nil
}

func flatten(host tsdispatch.MapHost, prefix string, v any) {
	switch v := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			flatten(host, key, v[k])
		}
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, fmt.Sprint(item))
		}
		host[prefix] = strings.Join(parts, ",")
	case nil:
		host[prefix] = ""
	default:
		host[prefix] = fmt.Sprint(v)
	}
}
