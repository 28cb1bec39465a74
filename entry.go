package bundlecfg

import (
	"fmt"
	"sort"
)

// DefaultEntryName is the bundle name used when the configuration declares a
// bare string or array as its entry.
const DefaultEntryName = "main"

type entryKind int

const (
	entryKindSingle entryKind = iota + 1
	entryKindMultiple
)

// EntryValue is the value of a single entry bundle as written in a
// configuration: either one module reference or an ordered list of them.
type EntryValue struct {
	kind    entryKind
	single  string
	modules []string
}

func Single(module string) EntryValue {
	return EntryValue{kind: entryKindSingle, single: module}
}

func Multiple(modules ...string) EntryValue {
	return EntryValue{kind: entryKindMultiple, modules: append([]string(nil), modules...)}
}

// Modules returns the value as an ordered sequence. A Single value becomes a
// one-element sequence.
func (v EntryValue) Modules() []string {
	switch v.kind {
	case entryKindSingle:
		return []string{v.single}
	case entryKindMultiple:
		return append([]string(nil), v.modules...)
	default:
		return nil
	}
}

// ParseEntryValue coerces a decoded configuration value into an EntryValue.
func ParseEntryValue(path string, raw any) (EntryValue, error) {
	switch v := raw.(type) {
	case string:
		return Single(v), nil
	case []string:
		return Multiple(v...), nil
	case []any:
		modules := make([]string, 0, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return EntryValue{}, &ConfigurationError{
					Path: indexPath(path, i),
					Err:  fmt.Errorf("%w, got %s", ErrInvalidEntry, describe(item)),
				}
			}
			modules = append(modules, s)
		}
		return Multiple(modules...), nil
	default:
		return EntryValue{}, &ConfigurationError{
			Path: path,
			Err:  fmt.Errorf("%w, got %s", ErrInvalidEntry, describe(raw)),
		}
	}
}

// EntryMap maps entry bundle names to the ordered module references that make
// up each bundle.
type EntryMap map[string][]string

// ParseEntryMap builds an EntryMap from the raw "entry" value of a
// configuration. A bare string or array is treated as a single bundle named
// DefaultEntryName.
func ParseEntryMap(raw any) (EntryMap, error) {
	const path = "entry"

	switch v := raw.(type) {
	case nil:
		return nil, &ConfigurationError{Path: path, Err: ErrMissingEntry}
	case string, []string, []any:
		value, err := ParseEntryValue(path, v)
		if err != nil {
			return nil, err
		}
		return EntryMap{DefaultEntryName: value.Modules()}, nil
	case map[string]any:
		entries := make(EntryMap, len(v))
		for name, item := range v {
			value, err := ParseEntryValue(joinPath(path, name), item)
			if err != nil {
				return nil, err
			}
			entries[name] = value.Modules()
		}
		return entries, nil
	case map[string][]string:
		return EntryMap(v).Clone(), nil
	default:
		return nil, &ConfigurationError{
			Path: path,
			Err:  fmt.Errorf("%w, got %s", ErrInvalidEntry, describe(raw)),
		}
	}
}

// Names returns the bundle names in sorted order.
func (m EntryMap) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m EntryMap) Clone() EntryMap {
	if m == nil {
		return nil
	}
	c := make(EntryMap, len(m))
	for name, modules := range m {
		c[name] = append([]string(nil), modules...)
	}
	return c
}

// WithBootstrap returns a copy of the map where every sequence starts with
// bootstrap. Sequences that already start with it are copied unchanged, so
// applying the same bootstrap twice is a no-op.
func (m EntryMap) WithBootstrap(bootstrap string) (EntryMap, error) {
	if bootstrap == "" {
		return nil, &ConfigurationError{Path: "bootstrap", Err: ErrEmptyBootstrap}
	}
	if m == nil {
		return nil, &ConfigurationError{Path: "entry", Err: ErrMissingEntry}
	}

	out := make(EntryMap, len(m))
	for name, modules := range m {
		if len(modules) > 0 && modules[0] == bootstrap {
			out[name] = append([]string(nil), modules...)
			continue
		}
		seq := make([]string, 0, len(modules)+1)
		seq = append(seq, bootstrap)
		seq = append(seq, modules...)
		out[name] = seq
	}
	return out, nil
}

// Normalize coerces every entry value into a sequence and prepends the
// bootstrap module to it. The input map is not modified.
func Normalize(entries map[string]any, bootstrap string) (EntryMap, error) {
	if entries == nil {
		return nil, &ConfigurationError{Path: "entry", Err: ErrMissingEntry}
	}
	m, err := ParseEntryMap(entries)
	if err != nil {
		return nil, err
	}
	return m.WithBootstrap(bootstrap)
}

func describe(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return "number"
	case string:
		return "string"
	case []any, []string:
		return "array"
	case map[string]any:
		return "object"
	case Pattern:
		return "regular expression"
	case Plugin:
		return "plugin instance"
	default:
		return fmt.Sprintf("%T", v)
	}
}
