package logging

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Spec is a base level plus per-component overrides.
//
// Format: "<base-level>[,<component>=<level>]...", for example
// "warn,manager=debug,drm=trace".
type Spec struct {
	BaseLevel  Level
	Components map[string]Level
}

// ParseSpec parses a log specification. An empty string yields info
// with no overrides.
func ParseSpec(s string) (Spec, error) {
	spec := Spec{
		BaseLevel:  LevelInfo,
		Components: make(map[string]Level),
	}

	for i, part := range strings.Split(strings.TrimSpace(s), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		component, levelStr, ok := strings.Cut(part, "=")
		if !ok {
			if i != 0 {
				return spec, fmt.Errorf("base level %q must be first in spec", part)
			}
			level, err := ParseLevel(part)
			if err != nil {
				return spec, err
			}
			spec.BaseLevel = level
			continue
		}

		component = strings.TrimSpace(component)
		if component == "" {
			return spec, fmt.Errorf("empty component name in %q", part)
		}
		level, err := ParseLevel(levelStr)
		if err != nil {
			return spec, fmt.Errorf("invalid level for component %q: %w", component, err)
		}
		spec.Components[component] = level
	}

	return spec, nil
}

// SpecFromComponents builds a spec string from a base level and a
// component map, as found in the config file.
func SpecFromComponents(base string, components map[string]string) string {
	parts := []string{base}
	for _, name := range slices.Sorted(maps.Keys(components)) {
		parts = append(parts, name+"="+components[name])
	}
	return strings.Join(parts, ",")
}

// LevelFor returns the level of component, or the base level.
func (s *Spec) LevelFor(component string) Level {
	if level, ok := s.Components[component]; ok {
		return level
	}
	return s.BaseLevel
}

// String renders the spec in the form ParseSpec accepts, with
// components sorted.
func (s *Spec) String() string {
	return SpecFromComponents(s.BaseLevel.String(), levelStrings(s.Components))
}

func levelStrings(m map[string]Level) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v.String()
	}
	return out
}
