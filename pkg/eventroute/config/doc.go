/*
Package config provides type-safe configuration extraction from map[string]any.

# Overview

config wraps a map[string]any and provides typed accessor methods that handle
missing keys and type mismatches gracefully by returning default values.
This is useful for extracting engine settings from YAML/JSON structures
without verbose type assertions and nil checks.

# Basic Usage

Create a Config from any map and extract values with defaults:

	cfg := config.New(map[string]any{
	    "handler_timeout": "5s",
	    "group_threshold": 2,
	    "durable":         true,
	})

	timeout := cfg.Duration("handler_timeout", 10*time.Second) // 5s
	threshold := cfg.Int("group_threshold", 2)                 // 2
	durable := cfg.Bool("durable", false)                      // true
	missing := cfg.String("missing", "default")                // "default"

# Nested Sections

Sub descends into a nested map, so a structured file maps naturally onto
the engine's option groups:

	cfg, _ := config.FromYAML([]byte(`
	correlation:
	  group_ttl: 5m
	  required_types: [build.started, build.finished]
	store:
	  path: ./events.db
	`))

	ttl := cfg.Sub("correlation").Duration("group_ttl", time.Minute)
	path := cfg.Sub("store").String("path", ":memory:")

# Type Coercion

Duration handles multiple input types:
  - string: parsed with time.ParseDuration ("30s", "1h30m")
  - int/float64: interpreted as seconds
  - time.Duration: used directly

All methods return the default value if:
  - The key is missing
  - The value cannot be converted to the requested type
  - The conversion would lose precision (e.g., float to int with fraction)

# File Loading

Load configuration from YAML or JSON files:

	cfg, err := config.FromFile("eventroute.yaml")
	if err != nil {
	    log.Fatal(err)
	}

# Thread Safety

Config is safe for concurrent read access. The underlying map is not
modified after creation. However, if the original map is modified
externally, behavior is undefined.
*/
package config
