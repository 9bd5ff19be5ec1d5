package prompt

import (
	"errors"
	"regexp"
	"slices"
	"strings"
)

var placeholder = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.-]+)\s*\}\}`)

var errEmptyTemplate = errors.New("template is required")

// MissingVarsError lists the placeholders a render call had no value for.
type MissingVarsError struct {
	Names []string
}

func (e *MissingVarsError) Error() string {
	return "missing prompt variables: " + strings.Join(e.Names, ", ")
}

// Placeholders returns the distinct variable names referenced by text, sorted.
func Placeholders(text string) []string {
	var names []string
	for _, m := range placeholder.FindAllStringSubmatch(text, -1) {
		names = append(names, m[1])
	}
	slices.Sort(names)
	return slices.Compact(names)
}

// Render substitutes {{name}} placeholders in a single pass, so values that
// themselves contain braces are left alone.
func Render(text string, vars map[string]string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errEmptyTemplate
	}
	var missing []string
	for _, name := range Placeholders(text) {
		if _, ok := vars[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return "", &MissingVarsError{Names: missing}
	}
	return placeholder.ReplaceAllStringFunc(text, func(match string) string {
		return vars[placeholder.FindStringSubmatch(match)[1]]
	}), nil
}
