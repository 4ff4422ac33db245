package sandbox

import (
	"strings"

	"github.com/dop251/goja"
	"golang.org/x/net/html"
)

// inlineStyle backs element.style. Properties are read from and written to
// the style attribute, so serialization always reflects script changes.
type inlineStyle struct {
	d *domBinding
	n *html.Node
}

func (d *domBinding) style(n *html.Node) goja.Value {
	if obj, ok := d.styles[n]; ok {
		return obj
	}
	obj := d.vm.NewDynamicObject(&inlineStyle{d: d, n: n})
	d.styles[n] = obj
	return obj
}

func (s *inlineStyle) Get(key string) goja.Value {
	vm := s.d.vm
	switch key {
	case "cssText":
		v, _ := attr(s.n, "style")
		return vm.ToValue(v)
	case "length":
		return vm.ToValue(len(parseDeclarations(s.read())))
	case "getPropertyValue":
		return vm.ToValue(func(name string) string {
			return lookupDeclaration(s.read(), strings.ToLower(name))
		})
	case "setProperty":
		return vm.ToValue(func(name, value string) {
			s.write(strings.ToLower(name), value)
		})
	case "removeProperty":
		return vm.ToValue(func(name string) string {
			name = strings.ToLower(name)
			old := lookupDeclaration(s.read(), name)
			s.write(name, "")
			return old
		})
	}
	return vm.ToValue(lookupDeclaration(s.read(), cssProperty(key)))
}

func (s *inlineStyle) Set(key string, val goja.Value) bool {
	if key == "cssText" {
		setAttr(s.n, "style", valueString(val))
		return true
	}
	v := ""
	if val != nil && !goja.IsNull(val) && !goja.IsUndefined(val) {
		v = val.String()
	}
	s.write(cssProperty(key), v)
	return true
}

func (s *inlineStyle) Has(key string) bool {
	switch key {
	case "cssText", "length", "getPropertyValue", "setProperty", "removeProperty":
		return true
	}
	return lookupDeclaration(s.read(), cssProperty(key)) != ""
}

func (s *inlineStyle) Delete(key string) bool {
	s.write(cssProperty(key), "")
	return true
}

func (s *inlineStyle) Keys() []string {
	var keys []string
	for _, decl := range parseDeclarations(s.read()) {
		keys = append(keys, camelCase(decl[0]))
	}
	return keys
}

func (s *inlineStyle) read() string {
	v, _ := attr(s.n, "style")
	return v
}

// write sets one declaration, removing it when value is empty
func (s *inlineStyle) write(prop, value string) {
	decls := parseDeclarations(s.read())
	found := false
	out := decls[:0]
	for _, decl := range decls {
		if decl[0] == prop {
			found = true
			if value == "" {
				continue
			}
			decl[1] = value
		}
		out = append(out, decl)
	}
	if !found && value != "" {
		out = append(out, [2]string{prop, value})
	}
	if len(out) == 0 {
		removeAttr(s.n, "style")
		return
	}
	parts := make([]string, len(out))
	for i, decl := range out {
		parts[i] = decl[0] + ": " + decl[1] + ";"
	}
	setAttr(s.n, "style", strings.Join(parts, " "))
}

func parseDeclarations(css string) [][2]string {
	var out [][2]string
	for _, part := range strings.Split(css, ";") {
		name, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		name = strings.ToLower(strings.TrimSpace(name))
		value = strings.TrimSpace(value)
		if name == "" {
			continue
		}
		out = append(out, [2]string{name, value})
	}
	return out
}

func lookupDeclaration(css, prop string) string {
	value := ""
	for _, decl := range parseDeclarations(css) {
		if decl[0] == prop {
			value = decl[1]
		}
	}
	return value
}

// cssProperty maps backgroundColor to background-color. Custom properties
// and names that already contain a dash pass through.
func cssProperty(key string) string {
	if strings.HasPrefix(key, "--") || strings.Contains(key, "-") {
		return strings.ToLower(key)
	}
	if key == "cssFloat" {
		return "float"
	}
	var b strings.Builder
	for i, r := range key {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func camelCase(prop string) string {
	if strings.HasPrefix(prop, "--") {
		return prop
	}
	parts := strings.Split(prop, "-")
	for i := 1; i < len(parts); i++ {
		if parts[i] != "" {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, "")
}

// ============================================================================
// classList
// ============================================================================

func (d *domBinding) classes(n *html.Node) goja.Value {
	if obj, ok := d.classList[n]; ok {
		return obj
	}

	read := func() []string {
		v, _ := attr(n, "class")
		return strings.Fields(v)
	}
	write := func(list []string) {
		setAttr(n, "class", strings.Join(list, " "))
	}

	obj := d.vm.NewObject()
	_ = obj.Set("add", func(call goja.FunctionCall) goja.Value {
		list := read()
		for _, a := range call.Arguments {
			if c := a.String(); !containsString(list, c) {
				list = append(list, c)
			}
		}
		write(list)
		return goja.Undefined()
	})
	_ = obj.Set("remove", func(call goja.FunctionCall) goja.Value {
		list := read()
		for _, a := range call.Arguments {
			list = without(list, a.String())
		}
		write(list)
		return goja.Undefined()
	})
	_ = obj.Set("contains", func(c string) bool {
		return containsString(read(), c)
	})
	_ = obj.Set("toggle", func(call goja.FunctionCall) goja.Value {
		c := call.Argument(0).String()
		list := read()
		on := !containsString(list, c)
		if force := call.Argument(1); !goja.IsUndefined(force) {
			on = force.ToBoolean()
		}
		if on && !containsString(list, c) {
			list = append(list, c)
		} else if !on {
			list = without(list, c)
		}
		write(list)
		return d.vm.ToValue(on)
	})
	_ = obj.Set("item", func(i int) interface{} {
		list := read()
		if i < 0 || i >= len(list) {
			return nil
		}
		return list[i]
	})
	_ = obj.DefineAccessorProperty("length", d.vm.ToValue(func(goja.FunctionCall) goja.Value {
		return d.vm.ToValue(len(read()))
	}), nil, goja.FLAG_TRUE, goja.FLAG_TRUE)
	_ = obj.DefineAccessorProperty("value", d.vm.ToValue(func(goja.FunctionCall) goja.Value {
		return d.vm.ToValue(strings.Join(read(), " "))
	}), nil, goja.FLAG_TRUE, goja.FLAG_TRUE)
	_ = obj.Set("toString", func() string {
		v, _ := attr(n, "class")
		return v
	})

	d.classList[n] = obj
	return obj
}

func without(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
