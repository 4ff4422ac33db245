package sandbox

import (
	"time"

	"github.com/dop251/goja"
	"golang.org/x/net/html"
)

type eventState struct {
	typ      string
	bubbles  bool
	stop     bool
	stopNow  bool
	canceled bool
	target   goja.Value
	current  goja.Value
}

// newEvent builds an Event object. The returned state backs the
// object's accessors and propagation methods.
func (r *Runtime) newEvent(typ string, target *html.Node, bubbles bool) *goja.Object {
	obj := r.vm.NewObject()
	st := &eventState{typ: typ, bubbles: bubbles, target: goja.Null(), current: goja.Null()}
	if target != nil {
		st.target = r.nodeValue(target)
	}
	r.bindEvent(obj, st)
	return obj
}

func (r *Runtime) bindEvent(obj *goja.Object, st *eventState) {
	r.events[obj] = st

	getter := func(fn func() interface{}) goja.Value {
		return r.vm.ToValue(func(goja.FunctionCall) goja.Value { return r.vm.ToValue(fn()) })
	}
	_ = obj.Set("type", st.typ)
	_ = obj.Set("bubbles", st.bubbles)
	_ = obj.Set("cancelable", true)
	_ = obj.Set("isTrusted", false)
	_ = obj.Set("timeStamp", float64(time.Now().UnixMilli()))
	_ = obj.DefineAccessorProperty("target", getter(func() interface{} { return st.target }), nil, goja.FLAG_TRUE, goja.FLAG_TRUE)
	_ = obj.DefineAccessorProperty("currentTarget", getter(func() interface{} { return st.current }), nil, goja.FLAG_TRUE, goja.FLAG_TRUE)
	_ = obj.DefineAccessorProperty("defaultPrevented", getter(func() interface{} { return st.canceled }), nil, goja.FLAG_TRUE, goja.FLAG_TRUE)
	_ = obj.Set("preventDefault", func() { st.canceled = true })
	_ = obj.Set("stopPropagation", func() { st.stop = true })
	_ = obj.Set("stopImmediatePropagation", func() {
		st.stop = true
		st.stopNow = true
	})
}

// eventConstructor implements new Event(type, {bubbles}) and
// new CustomEvent(type, {bubbles, detail}).
func (r *Runtime) eventConstructor(call goja.ConstructorCall) *goja.Object {
	typ := call.Argument(0).String()
	bubbles := false
	var detail goja.Value = goja.Null()
	if opts, ok := call.Argument(1).(*goja.Object); ok {
		if b := opts.Get("bubbles"); b != nil {
			bubbles = b.ToBoolean()
		}
		if d := opts.Get("detail"); d != nil && !goja.IsUndefined(d) {
			detail = d
		}
	}
	obj := call.This
	r.bindEvent(obj, &eventState{typ: typ, bubbles: bubbles, target: goja.Null(), current: goja.Null()})
	_ = obj.Set("detail", detail)
	return nil
}

// dispatchEvent fires a fresh event of typ at target. It reports whether
// the default action is still allowed.
func (r *Runtime) dispatchEvent(target *html.Node, typ string, bubbles bool) bool {
	return r.dispatchObject(target, r.newEvent(typ, target, bubbles))
}

// dispatchObject walks the propagation path from target to window. There
// is no capture phase: capturing listeners run with the bubbling ones.
func (r *Runtime) dispatchObject(target *html.Node, event *goja.Object) bool {
	st, ok := r.events[event]
	if !ok {
		return true
	}
	st.target = r.nodeValue(target)

	path := []*html.Node{target}
	if target != r.window && st.bubbles {
		for p := target.Parent; p != nil; p = p.Parent {
			path = append(path, p)
		}
		if r.doc != nil && path[len(path)-1] == r.doc {
			path = append(path, r.window)
		}
	}

	for _, node := range path {
		if r.closed.Load() {
			break
		}
		this := r.nodeValue(node)
		st.current = this

		if handler := r.handlerFor(node, st.typ); handler != nil {
			r.exec("listener", func() error {
				_, err := handler(this, event)
				return err
			})
		}
		for _, fn := range r.callbacksFor(node, st.typ) {
			if st.stopNow {
				break
			}
			r.exec("listener", func() error {
				_, err := fn(this, event)
				return err
			})
		}
		if st.stop {
			break
		}
	}
	st.current = goja.Null()
	delete(r.events, event)
	return !st.canceled
}

// activate runs the click activation behavior of n
func (r *Runtime) activate(n *html.Node) {
	r.dispatchEvent(n, "click", true)
}

// handlerFor resolves an on<type> event handler: a function assigned to
// the property, or else the attribute compiled as a function body.
func (r *Runtime) handlerFor(node *html.Node, typ string) goja.Callable {
	name := "on" + typ
	var holder *goja.Object
	if node == r.window {
		holder = r.vm.GlobalObject()
	} else if r.dom != nil {
		holder = r.dom.existing(node)
	}
	if holder != nil {
		if v := holder.Get(name); v != nil {
			if fn, ok := goja.AssertFunction(v); ok {
				return fn
			}
		}
	}
	if node == r.window || node.Type != html.ElementNode {
		return nil
	}
	body, ok := attr(node, name)
	if !ok {
		return nil
	}
	v, err := r.vm.RunString("(function(event) {\n" + body + "\n})")
	if err != nil {
		r.reportUncaught("listener", err)
		return nil
	}
	fn, _ := goja.AssertFunction(v)
	return fn
}

// callbacksFor snapshots the listeners registered for typ on node
func (r *Runtime) callbacksFor(node *html.Node, typ string) []goja.Callable {
	var out []goja.Callable
	for _, v := range r.listeners[node][typ] {
		if fn, ok := goja.AssertFunction(v); ok {
			out = append(out, fn)
		}
	}
	return out
}

func (r *Runtime) addListener(node *html.Node, typ string, fn goja.Value) {
	if _, ok := goja.AssertFunction(fn); !ok {
		return
	}
	byType, ok := r.listeners[node]
	if !ok {
		byType = make(map[string][]goja.Value)
		r.listeners[node] = byType
	}
	for _, existing := range byType[typ] {
		if existing.SameAs(fn) {
			return
		}
	}
	byType[typ] = append(byType[typ], fn)
}

func (r *Runtime) removeListener(node *html.Node, typ string, fn goja.Value) {
	list := r.listeners[node][typ]
	for i, existing := range list {
		if existing.SameAs(fn) {
			r.listeners[node][typ] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// nodeValue maps a node to the value scripts see for it
func (r *Runtime) nodeValue(n *html.Node) goja.Value {
	if n == r.window {
		return r.vm.GlobalObject()
	}
	if r.dom == nil {
		return goja.Null()
	}
	return r.dom.wrap(n)
}

func (r *Runtime) setReadyState(state string) {
	r.readyState = state
	if r.doc != nil {
		r.dispatchEvent(r.doc, "readystatechange", false)
	}
}
