package loader

import (
	"fmt"

	"go.miragespace.co/bundlecfg"

	"gopkg.in/yaml.v3"
)

// decodeYAML also handles JSON documents, which are valid YAML.
func decodeYAML(src []byte) (map[string]any, error) {
	var doc any
	if err := yaml.Unmarshal(src, &doc); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}
	tree, ok := normalizeYAML(doc).(map[string]any)
	if !ok {
		return nil, &bundlecfg.ConfigurationError{Err: fmt.Errorf("%w: document must be a mapping", bundlecfg.ErrInvalidConfig)}
	}
	return tree, nil
}

func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, item := range t {
			t[k] = normalizeYAML(item)
		}
		return t
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, item := range t {
			m[fmt.Sprint(k)] = normalizeYAML(item)
		}
		return m
	case []any:
		for i, item := range t {
			t[i] = normalizeYAML(item)
		}
		return t
	case int:
		return int64(t)
	default:
		return v
	}
}
