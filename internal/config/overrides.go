package config

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/cast"

	"trend-edge-lab/internal/domain"
)

var (
	fieldsOnce sync.Once
	fieldIndex map[string]int // yaml key -> domain.Config field index
)

func configFields() map[string]int {
	fieldsOnce.Do(func() {
		fieldIndex = make(map[string]int)
		t := reflect.TypeOf(domain.Config{})
		for i := 0; i < t.NumField(); i++ {
			tag := strings.Split(t.Field(i).Tag.Get("yaml"), ",")[0]
			if tag != "" && tag != "-" {
				fieldIndex[tag] = i
			}
		}
	})
	return fieldIndex
}

// Keys returns every overridable yaml key in sorted order.
func Keys() []string {
	idx := configFields()
	keys := make([]string, 0, len(idx))
	for k := range idx {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ApplyOverrides returns a copy of base with every key of overrides set.
// Keys are config yaml keys; values are converted with spf13/cast, so
// strings such as "2.5" or "true" from a command line are accepted. base is
// never modified.
func ApplyOverrides(base domain.Config, overrides map[string]any) (domain.Config, error) {
	out := base
	out.Symbols = append([]string(nil), base.Symbols...)

	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	idx := configFields()
	v := reflect.ValueOf(&out).Elem()
	for _, k := range keys {
		i, ok := idx[k]
		if !ok {
			return base, fmt.Errorf("%w: %q", ErrUnknownKey, k)
		}
		if err := setField(v.Field(i), overrides[k]); err != nil {
			return base, fmt.Errorf("%w: %s: %v", ErrInvalidOverride, k, err)
		}
	}
	return out, nil
}

func setField(f reflect.Value, raw any) error {
	switch f.Kind() {
	case reflect.Float64:
		x, err := cast.ToFloat64E(raw)
		if err != nil {
			return err
		}
		f.SetFloat(x)
	case reflect.Int:
		x, err := cast.ToIntE(raw)
		if err != nil {
			return err
		}
		f.SetInt(int64(x))
	case reflect.Bool:
		x, err := cast.ToBoolE(raw)
		if err != nil {
			return err
		}
		f.SetBool(x)
	case reflect.String:
		x, err := cast.ToStringE(raw)
		if err != nil {
			return err
		}
		f.SetString(x)
	case reflect.Slice:
		var list []string
		if s, ok := raw.(string); ok {
			list = splitList(s)
		} else {
			var err error
			if list, err = cast.ToStringSliceE(raw); err != nil {
				return err
			}
		}
		f.Set(reflect.ValueOf(list))
	default:
		return fmt.Errorf("unsupported kind %s", f.Kind())
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Pairs collects a repeated "key=value" command-line flag.
type Pairs []string

func (p *Pairs) String() string { return strings.Join(*p, ",") }

// Set appends one pair.
func (p *Pairs) Set(v string) error {
	*p = append(*p, v)
	return nil
}

// ParseSet parses command-line "key=value" pairs into an override map.
func ParseSet(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, val, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("%w: %q is not key=value", ErrInvalidOverride, p)
		}
		out[k] = strings.TrimSpace(val)
	}
	return out, nil
}

// ApplyPreset overlays preset id onto cfg. NONE and the empty string leave
// cfg unchanged.
func ApplyPreset(cfg domain.Config, id string) (domain.Config, error) {
	if id == "" || id == PresetNone {
		return cfg, nil
	}
	overlay, ok := presets[id]
	if !ok {
		return cfg, fmt.Errorf("%w: %q", ErrUnknownPreset, id)
	}
	out, err := ApplyOverrides(cfg, overlay)
	if err != nil {
		return cfg, err
	}
	out.Profile = id
	return out, nil
}
