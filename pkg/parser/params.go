package parser

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// ParamDef is a "#param" declaration of an included file.
type ParamDef struct {
	Name     string
	Default  string
	Required bool
}

// ValidateParams checks that all required params are provided and no unknown
// params are passed.
func ValidateParams(defs []ParamDef, provided map[string]string) error {
	known := make(map[string]struct{}, len(defs))
	for i := range defs {
		name := defs[i].Name
		if _, ok := known[name]; ok {
			return fmt.Errorf("param %q: %w", name, ErrDuplicateParam)
		}
		known[name] = struct{}{}
		if defs[i].Required {
			if _, ok := provided[name]; !ok {
				return fmt.Errorf("param %q: %w", name, ErrMissingParam)
			}
		}
	}
	for _, k := range slices.Sorted(maps.Keys(provided)) {
		if _, ok := known[k]; !ok {
			return fmt.Errorf("param %q: %w", k, ErrUnknownParam)
		}
	}
	return nil
}

// ResolveParams merges provided values with defaults.
func ResolveParams(defs []ParamDef, provided map[string]string) (map[string]string, error) {
	if err := ValidateParams(defs, provided); err != nil {
		return nil, err
	}
	resolved := make(map[string]string, len(defs))
	for i := range defs {
		if v, ok := provided[defs[i].Name]; ok {
			resolved[defs[i].Name] = v
		} else {
			resolved[defs[i].Name] = defs[i].Default
		}
	}
	return resolved, nil
}

// substituter returns a function replacing ${param.<name>} placeholders in a
// single pass.
func substituter(params map[string]string) func(string) string {
	if len(params) == 0 {
		return func(s string) string { return s }
	}
	pairs := make([]string, 0, len(params)*2)
	for _, k := range slices.Sorted(maps.Keys(params)) {
		pairs = append(pairs, "${param."+k+"}", params[k])
	}
	r := strings.NewReplacer(pairs...)
	return r.Replace
}
