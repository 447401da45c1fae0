package graphic

import (
	"strings"

	"github.com/beevik/etree"
)

// Style is an inline CSS declaration list in source order.
type Style struct {
	names  []string
	values map[string]string
}

func ParseStyle(value string) *Style {
	style := &Style{values: map[string]string{}}

	for _, declaration := range splitDeclarations(value) {
		name, value, ok := strings.Cut(declaration, ":")
		if !ok {
			continue
		}

		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}

		style.Set(name, strings.TrimSpace(value))
	}

	return style
}

// splitDeclarations splits on semicolons outside of quotes and
// parentheses, so url("data:...;base64,...") stays whole.
func splitDeclarations(value string) []string {
	var (
		result []string
		depth  int
		quote  rune
		start  int
	)

	for i, r := range value {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '(':
			depth++
		case r == ')' && depth > 0:
			depth--
		case r == ';' && depth == 0:
			result = append(result, value[start:i])
			start = i + 1
		}
	}

	return append(result, value[start:])
}

func (style *Style) Get(name string) (string, bool) {
	value, ok := style.values[name]
	return value, ok
}

func (style *Style) Set(name, value string) {
	if _, ok := style.values[name]; !ok {
		style.names = append(style.names, name)
	}

	style.values[name] = value
}

func (style *Style) Delete(name string) {
	if _, ok := style.values[name]; !ok {
		return
	}

	delete(style.values, name)

	for i, existing := range style.names {
		if existing == name {
			style.names = append(style.names[:i], style.names[i+1:]...)
			break
		}
	}
}

func (style *Style) String() string {
	declarations := make([]string, 0, len(style.names))
	for _, name := range style.names {
		declarations = append(declarations, name+": "+style.values[name])
	}

	return strings.Join(declarations, "; ")
}

// Property resolves a presentation property on element: the inline style
// wins over the attribute of the same name.
func Property(element *etree.Element, name string) (string, bool) {
	style := ParseStyle(element.SelectAttrValue("style", ""))
	if value, ok := style.Get(name); ok {
		return value, true
	}

	attr := element.SelectAttr(name)
	if attr == nil {
		return "", false
	}

	return attr.Value, true
}
