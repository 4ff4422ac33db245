package sandbox

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/dop251/goja"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// domBinding exposes an x/net/html tree to scripts. Each node maps to one
// wrapper object for its lifetime so identity comparisons hold.
type domBinding struct {
	r        *Runtime
	vm       *goja.Runtime
	doc      *html.Node
	document *goja.Object

	nodeProto    *goja.Object
	elementProto *goja.Object
	docProto     *goja.Object

	wrappers  map[*html.Node]*goja.Object
	nodes     map[*goja.Object]*html.Node
	styles    map[*html.Node]*goja.Object
	classList map[*html.Node]*goja.Object
}

func newDOMBinding(r *Runtime, doc *html.Node) *domBinding {
	d := &domBinding{
		r:         r,
		vm:        r.vm,
		doc:       doc,
		wrappers:  make(map[*html.Node]*goja.Object),
		nodes:     make(map[*goja.Object]*html.Node),
		styles:    make(map[*html.Node]*goja.Object),
		classList: make(map[*html.Node]*goja.Object),
	}
	d.nodeProto = d.buildNodeProto()
	d.elementProto = d.buildElementProto()
	d.docProto = d.buildDocumentProto()
	d.document = d.wrap(doc).(*goja.Object)
	return d
}

// wrap returns the wrapper for n, creating it on first use
func (d *domBinding) wrap(n *html.Node) goja.Value {
	if n == nil {
		return goja.Null()
	}
	if obj, ok := d.wrappers[n]; ok {
		return obj
	}
	obj := d.vm.NewObject()
	switch n.Type {
	case html.ElementNode:
		_ = obj.SetPrototype(d.elementProto)
	case html.DocumentNode:
		_ = obj.SetPrototype(d.docProto)
	default:
		_ = obj.SetPrototype(d.nodeProto)
	}
	d.wrappers[n] = obj
	d.nodes[obj] = n
	return obj
}

// existing returns the wrapper for n if scripts have seen it
func (d *domBinding) existing(n *html.Node) *goja.Object {
	return d.wrappers[n]
}

func (d *domBinding) unwrap(v goja.Value) *html.Node {
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil
	}
	return d.nodes[obj]
}

func (d *domBinding) this(call goja.FunctionCall) *html.Node {
	n := d.unwrap(call.This)
	if n == nil {
		panic(d.vm.NewTypeError("Illegal invocation"))
	}
	return n
}

func (d *domBinding) nodeArg(call goja.FunctionCall, i int, method string) *html.Node {
	n := d.unwrap(call.Argument(i))
	if n == nil {
		panic(d.vm.NewTypeError(fmt.Sprintf("Failed to execute '%s' on 'Node': parameter %d is not of type 'Node'.", method, i+1)))
	}
	return n
}

func (d *domBinding) list(nodes []*html.Node) goja.Value {
	items := make([]interface{}, len(nodes))
	for i, n := range nodes {
		items[i] = d.wrap(n)
	}
	return d.vm.NewArray(items...)
}

func (d *domBinding) accessor(proto *goja.Object, name string, get func(*html.Node) goja.Value, set func(*html.Node, goja.Value)) {
	getter := d.vm.ToValue(func(call goja.FunctionCall) goja.Value {
		return get(d.this(call))
	})
	var setter goja.Value
	if set != nil {
		setter = d.vm.ToValue(func(call goja.FunctionCall) goja.Value {
			set(d.this(call), call.Argument(0))
			return goja.Undefined()
		})
	}
	_ = proto.DefineAccessorProperty(name, getter, setter, goja.FLAG_TRUE, goja.FLAG_TRUE)
}

func (d *domBinding) method(proto *goja.Object, name string, fn func(*html.Node, goja.FunctionCall) goja.Value) {
	_ = proto.Set(name, func(call goja.FunctionCall) goja.Value {
		return fn(d.this(call), call)
	})
}

func (d *domBinding) str(s string) goja.Value {
	return d.vm.ToValue(s)
}

// ============================================================================
// Node
// ============================================================================

func (d *domBinding) buildNodeProto() *goja.Object {
	p := d.vm.NewObject()

	d.accessor(p, "nodeType", func(n *html.Node) goja.Value { return d.vm.ToValue(nodeType(n)) }, nil)
	d.accessor(p, "nodeName", func(n *html.Node) goja.Value { return d.str(nodeName(n)) }, nil)
	d.accessor(p, "nodeValue", func(n *html.Node) goja.Value {
		if n.Type == html.TextNode || n.Type == html.CommentNode {
			return d.str(n.Data)
		}
		return goja.Null()
	}, func(n *html.Node, v goja.Value) {
		if n.Type == html.TextNode || n.Type == html.CommentNode {
			n.Data = v.String()
		}
	})
	d.accessor(p, "textContent", func(n *html.Node) goja.Value {
		if n.Type == html.DocumentNode {
			return goja.Null()
		}
		return d.str(textContent(n))
	}, func(n *html.Node, v goja.Value) {
		setTextContent(n, valueString(v))
	})
	d.accessor(p, "parentNode", func(n *html.Node) goja.Value { return d.wrap(n.Parent) }, nil)
	d.accessor(p, "parentElement", func(n *html.Node) goja.Value {
		if n.Parent != nil && n.Parent.Type == html.ElementNode {
			return d.wrap(n.Parent)
		}
		return goja.Null()
	}, nil)
	d.accessor(p, "childNodes", func(n *html.Node) goja.Value { return d.list(childNodes(n)) }, nil)
	d.accessor(p, "firstChild", func(n *html.Node) goja.Value { return d.wrap(n.FirstChild) }, nil)
	d.accessor(p, "lastChild", func(n *html.Node) goja.Value { return d.wrap(n.LastChild) }, nil)
	d.accessor(p, "nextSibling", func(n *html.Node) goja.Value { return d.wrap(n.NextSibling) }, nil)
	d.accessor(p, "previousSibling", func(n *html.Node) goja.Value { return d.wrap(n.PrevSibling) }, nil)
	d.accessor(p, "ownerDocument", func(n *html.Node) goja.Value {
		if n == d.doc {
			return goja.Null()
		}
		return d.document
	}, nil)
	d.accessor(p, "isConnected", func(n *html.Node) goja.Value { return d.vm.ToValue(root(n) == d.doc) }, nil)

	d.method(p, "appendChild", func(n *html.Node, call goja.FunctionCall) goja.Value {
		child := d.nodeArg(call, 0, "appendChild")
		d.insert(n, child, nil)
		return call.Argument(0)
	})
	d.method(p, "insertBefore", func(n *html.Node, call goja.FunctionCall) goja.Value {
		child := d.nodeArg(call, 0, "insertBefore")
		ref := d.unwrap(call.Argument(1))
		if ref != nil && ref.Parent != n {
			d.r.throwDOMException("NotFoundError", "Failed to execute 'insertBefore' on 'Node': The node before which the new node is to be inserted is not a child of this node.")
		}
		d.insert(n, child, ref)
		return call.Argument(0)
	})
	d.method(p, "removeChild", func(n *html.Node, call goja.FunctionCall) goja.Value {
		child := d.nodeArg(call, 0, "removeChild")
		if child.Parent != n {
			d.r.throwDOMException("NotFoundError", "Failed to execute 'removeChild' on 'Node': The node to be removed is not a child of this node.")
		}
		n.RemoveChild(child)
		return call.Argument(0)
	})
	d.method(p, "replaceChild", func(n *html.Node, call goja.FunctionCall) goja.Value {
		next := d.nodeArg(call, 0, "replaceChild")
		old := d.nodeArg(call, 1, "replaceChild")
		if old.Parent != n {
			d.r.throwDOMException("NotFoundError", "Failed to execute 'replaceChild' on 'Node': The node to be replaced is not a child of this node.")
		}
		if next != old {
			d.insert(n, next, old)
			n.RemoveChild(old)
		}
		return call.Argument(1)
	})
	d.method(p, "contains", func(n *html.Node, call goja.FunctionCall) goja.Value {
		other := d.unwrap(call.Argument(0))
		return d.vm.ToValue(other != nil && isInclusiveAncestor(n, other))
	})
	d.method(p, "hasChildNodes", func(n *html.Node, _ goja.FunctionCall) goja.Value {
		return d.vm.ToValue(n.FirstChild != nil)
	})
	d.method(p, "cloneNode", func(n *html.Node, call goja.FunctionCall) goja.Value {
		return d.wrap(cloneNode(n, call.Argument(0).ToBoolean()))
	})
	d.method(p, "addEventListener", func(n *html.Node, call goja.FunctionCall) goja.Value {
		d.r.addListener(n, call.Argument(0).String(), call.Argument(1))
		return goja.Undefined()
	})
	d.method(p, "removeEventListener", func(n *html.Node, call goja.FunctionCall) goja.Value {
		d.r.removeListener(n, call.Argument(0).String(), call.Argument(1))
		return goja.Undefined()
	})
	d.method(p, "dispatchEvent", func(n *html.Node, call goja.FunctionCall) goja.Value {
		event, ok := call.Argument(0).(*goja.Object)
		if !ok {
			panic(d.vm.NewTypeError("Failed to execute 'dispatchEvent': parameter 1 is not of type 'Event'."))
		}
		return d.vm.ToValue(d.r.dispatchObject(n, event))
	})

	return p
}

// insert places child under parent before ref, or last when ref is nil
func (d *domBinding) insert(parent, child, ref *html.Node) {
	if isInclusiveAncestor(child, parent) {
		d.r.throwDOMException("HierarchyRequestError", "Failed to execute 'appendChild' on 'Node': The new child element contains the parent.")
	}
	if child == ref {
		return
	}
	if child.Parent != nil {
		child.Parent.RemoveChild(child)
	}
	if ref == nil {
		parent.AppendChild(child)
	} else {
		parent.InsertBefore(child, ref)
	}
}

// ============================================================================
// Element
// ============================================================================

func (d *domBinding) buildElementProto() *goja.Object {
	p := d.vm.NewObject()
	_ = p.SetPrototype(d.nodeProto)

	d.accessor(p, "tagName", func(n *html.Node) goja.Value { return d.str(strings.ToUpper(n.Data)) }, nil)
	d.accessor(p, "localName", func(n *html.Node) goja.Value { return d.str(n.Data) }, nil)
	d.accessor(p, "id", func(n *html.Node) goja.Value {
		v, _ := attr(n, "id")
		return d.str(v)
	}, func(n *html.Node, v goja.Value) { setAttr(n, "id", valueString(v)) })
	d.accessor(p, "className", func(n *html.Node) goja.Value {
		v, _ := attr(n, "class")
		return d.str(v)
	}, func(n *html.Node, v goja.Value) { setAttr(n, "class", valueString(v)) })
	d.accessor(p, "innerText", func(n *html.Node) goja.Value { return d.str(textContent(n)) },
		func(n *html.Node, v goja.Value) { setTextContent(n, valueString(v)) })
	d.accessor(p, "innerHTML", func(n *html.Node) goja.Value {
		out, err := goquery.NewDocumentFromNode(n).Html()
		if err != nil {
			return d.str("")
		}
		return d.str(out)
	}, func(n *html.Node, v goja.Value) {
		d.setInnerHTML(n, valueString(v))
	})
	d.accessor(p, "outerHTML", func(n *html.Node) goja.Value {
		out, err := goquery.OuterHtml(goquery.NewDocumentFromNode(n).Selection)
		if err != nil {
			return d.str("")
		}
		return d.str(out)
	}, nil)
	d.accessor(p, "value", func(n *html.Node) goja.Value {
		if n.DataAtom == atom.Textarea {
			return d.str(textContent(n))
		}
		v, _ := attr(n, "value")
		return d.str(v)
	}, func(n *html.Node, v goja.Value) {
		if n.DataAtom == atom.Textarea {
			setTextContent(n, valueString(v))
			return
		}
		setAttr(n, "value", valueString(v))
	})
	d.accessor(p, "children", func(n *html.Node) goja.Value { return d.list(elementChildren(n)) }, nil)
	d.accessor(p, "childElementCount", func(n *html.Node) goja.Value { return d.vm.ToValue(len(elementChildren(n))) }, nil)
	d.accessor(p, "firstElementChild", func(n *html.Node) goja.Value {
		if kids := elementChildren(n); len(kids) > 0 {
			return d.wrap(kids[0])
		}
		return goja.Null()
	}, nil)
	d.accessor(p, "lastElementChild", func(n *html.Node) goja.Value {
		if kids := elementChildren(n); len(kids) > 0 {
			return d.wrap(kids[len(kids)-1])
		}
		return goja.Null()
	}, nil)
	d.accessor(p, "style", func(n *html.Node) goja.Value { return d.style(n) }, func(n *html.Node, v goja.Value) {
		setAttr(n, "style", valueString(v))
	})
	d.accessor(p, "classList", func(n *html.Node) goja.Value { return d.classes(n) }, nil)

	d.method(p, "getAttribute", func(n *html.Node, call goja.FunctionCall) goja.Value {
		if v, ok := attr(n, strings.ToLower(call.Argument(0).String())); ok {
			return d.str(v)
		}
		return goja.Null()
	})
	d.method(p, "setAttribute", func(n *html.Node, call goja.FunctionCall) goja.Value {
		setAttr(n, strings.ToLower(call.Argument(0).String()), call.Argument(1).String())
		return goja.Undefined()
	})
	d.method(p, "removeAttribute", func(n *html.Node, call goja.FunctionCall) goja.Value {
		removeAttr(n, strings.ToLower(call.Argument(0).String()))
		return goja.Undefined()
	})
	d.method(p, "hasAttribute", func(n *html.Node, call goja.FunctionCall) goja.Value {
		_, ok := attr(n, strings.ToLower(call.Argument(0).String()))
		return d.vm.ToValue(ok)
	})
	d.method(p, "remove", func(n *html.Node, _ goja.FunctionCall) goja.Value {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
		return goja.Undefined()
	})
	d.method(p, "append", func(n *html.Node, call goja.FunctionCall) goja.Value {
		for _, arg := range call.Arguments {
			if child := d.unwrap(arg); child != nil {
				d.insert(n, child, nil)
				continue
			}
			n.AppendChild(&html.Node{Type: html.TextNode, Data: arg.String()})
		}
		return goja.Undefined()
	})
	d.method(p, "click", func(n *html.Node, _ goja.FunctionCall) goja.Value {
		d.r.activate(n)
		return goja.Undefined()
	})
	d.method(p, "focus", func(*html.Node, goja.FunctionCall) goja.Value { return goja.Undefined() })
	d.method(p, "blur", func(*html.Node, goja.FunctionCall) goja.Value { return goja.Undefined() })
	d.method(p, "matches", func(n *html.Node, call goja.FunctionCall) goja.Value {
		return d.vm.ToValue(d.compile(call.Argument(0).String()).Match(n))
	})
	d.method(p, "closest", func(n *html.Node, call goja.FunctionCall) goja.Value {
		sel := d.compile(call.Argument(0).String())
		for c := n; c != nil && c.Type == html.ElementNode; c = c.Parent {
			if sel.Match(c) {
				return d.wrap(c)
			}
		}
		return goja.Null()
	})
	d.addQueries(p)

	return p
}

func (d *domBinding) setInnerHTML(n *html.Node, markup string) {
	nodes, err := html.ParseFragment(strings.NewReader(markup), n)
	if err != nil {
		d.r.throwDOMException("SyntaxError", err.Error())
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	for _, c := range nodes {
		n.AppendChild(c)
	}
}

// ============================================================================
// Document
// ============================================================================

func (d *domBinding) buildDocumentProto() *goja.Object {
	p := d.vm.NewObject()
	_ = p.SetPrototype(d.nodeProto)

	d.accessor(p, "documentElement", func(n *html.Node) goja.Value { return d.wrap(findElement(n, atom.Html)) }, nil)
	d.accessor(p, "head", func(n *html.Node) goja.Value { return d.wrap(findElement(n, atom.Head)) }, nil)
	d.accessor(p, "body", func(n *html.Node) goja.Value { return d.wrap(findElement(n, atom.Body)) }, nil)
	d.accessor(p, "readyState", func(*html.Node) goja.Value { return d.str(d.r.readyState) }, nil)
	d.accessor(p, "title", func(n *html.Node) goja.Value {
		if t := findElement(n, atom.Title); t != nil {
			return d.str(strings.TrimSpace(textContent(t)))
		}
		return d.str("")
	}, func(n *html.Node, v goja.Value) {
		t := findElement(n, atom.Title)
		if t == nil {
			head := findElement(n, atom.Head)
			if head == nil {
				return
			}
			t = newElement("title")
			head.AppendChild(t)
		}
		setTextContent(t, valueString(v))
	})
	d.accessor(p, "cookie", func(*html.Node) goja.Value {
		d.r.throwDOMException("SecurityError", "Failed to read the 'cookie' property from 'Document': The document is sandboxed and lacks the 'allow-same-origin' flag.")
		return nil
	}, func(*html.Node, goja.Value) {
		d.r.throwDOMException("SecurityError", "Failed to set the 'cookie' property on 'Document': The document is sandboxed and lacks the 'allow-same-origin' flag.")
	})

	d.method(p, "getElementById", func(n *html.Node, call goja.FunctionCall) goja.Value {
		id := call.Argument(0).String()
		found := walkFirst(n, func(c *html.Node) bool {
			v, ok := attr(c, "id")
			return ok && v == id
		})
		return d.wrap(found)
	})
	d.method(p, "createElement", func(_ *html.Node, call goja.FunctionCall) goja.Value {
		return d.wrap(newElement(call.Argument(0).String()))
	})
	d.method(p, "createTextNode", func(_ *html.Node, call goja.FunctionCall) goja.Value {
		return d.wrap(&html.Node{Type: html.TextNode, Data: call.Argument(0).String()})
	})
	d.method(p, "createComment", func(_ *html.Node, call goja.FunctionCall) goja.Value {
		return d.wrap(&html.Node{Type: html.CommentNode, Data: call.Argument(0).String()})
	})
	d.addQueries(p)

	return p
}

// ============================================================================
// Queries
// ============================================================================

func (d *domBinding) addQueries(p *goja.Object) {
	d.method(p, "querySelector", func(n *html.Node, call goja.FunctionCall) goja.Value {
		found := goquery.NewDocumentFromNode(n).FindMatcher(d.compile(call.Argument(0).String()))
		if found.Length() == 0 {
			return goja.Null()
		}
		return d.wrap(found.Nodes[0])
	})
	d.method(p, "querySelectorAll", func(n *html.Node, call goja.FunctionCall) goja.Value {
		found := goquery.NewDocumentFromNode(n).FindMatcher(d.compile(call.Argument(0).String()))
		return d.list(found.Nodes)
	})
	d.method(p, "getElementsByTagName", func(n *html.Node, call goja.FunctionCall) goja.Value {
		tag := strings.ToLower(call.Argument(0).String())
		return d.list(walkAll(n, func(c *html.Node) bool {
			return tag == "*" || c.Data == tag
		}))
	})
	d.method(p, "getElementsByClassName", func(n *html.Node, call goja.FunctionCall) goja.Value {
		want := strings.Fields(call.Argument(0).String())
		return d.list(walkAll(n, func(c *html.Node) bool {
			if len(want) == 0 {
				return false
			}
			have, _ := attr(c, "class")
			classes := strings.Fields(have)
			for _, w := range want {
				if !containsString(classes, w) {
					return false
				}
			}
			return true
		}))
	})
}

// compile parses a selector or throws a SyntaxError into the script
func (d *domBinding) compile(selector string) cascadia.Selector {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		d.r.throwDOMException("SyntaxError", fmt.Sprintf("'%s' is not a valid selector.", selector))
	}
	return sel
}

// queryFirst is the host-side querySelector
func (d *domBinding) queryFirst(n *html.Node, selector string) (*html.Node, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	found := goquery.NewDocumentFromNode(n).FindMatcher(sel)
	if found.Length() == 0 {
		return nil, nil
	}
	return found.Nodes[0], nil
}

// ============================================================================
// Tree helpers
// ============================================================================

func nodeType(n *html.Node) int {
	switch n.Type {
	case html.ElementNode:
		return 1
	case html.TextNode:
		return 3
	case html.CommentNode:
		return 8
	case html.DocumentNode:
		return 9
	case html.DoctypeNode:
		return 10
	default:
		return 0
	}
}

func nodeName(n *html.Node) string {
	switch n.Type {
	case html.ElementNode:
		return strings.ToUpper(n.Data)
	case html.TextNode:
		return "#text"
	case html.CommentNode:
		return "#comment"
	case html.DocumentNode:
		return "#document"
	default:
		return n.Data
	}
}

func newElement(tag string) *html.Node {
	tag = strings.ToLower(tag)
	return &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode || n.Type == html.CommentNode {
		return n.Data
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		for k := c.FirstChild; k != nil; k = k.NextSibling {
			walk(k)
		}
	}
	walk(n)
	return b.String()
}

func setTextContent(n *html.Node, text string) {
	if n.Type == html.TextNode || n.Type == html.CommentNode {
		n.Data = text
		return
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	if text != "" {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
}

func childNodes(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, c)
	}
	return out
}

func elementChildren(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, c)
		}
	}
	return out
}

// walkAll collects descendant elements of n matching fn in document order
func walkAll(n *html.Node, fn func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(p *html.Node) {
		for c := p.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && fn(c) {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(n)
	return out
}

func walkFirst(n *html.Node, fn func(*html.Node) bool) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && fn(c) {
			return c
		}
		if found := walkFirst(c, fn); found != nil {
			return found
		}
	}
	return nil
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	return walkFirst(n, func(c *html.Node) bool { return c.DataAtom == a })
}

func isInclusiveAncestor(ancestor, n *html.Node) bool {
	for c := n; c != nil; c = c.Parent {
		if c == ancestor {
			return true
		}
	}
	return false
}

func root(n *html.Node) *html.Node {
	for n.Parent != nil {
		n = n.Parent
	}
	return n
}

func cloneNode(n *html.Node, deep bool) *html.Node {
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      append([]html.Attribute(nil), n.Attr...),
	}
	if deep {
		for k := n.FirstChild; k != nil; k = k.NextSibling {
			c.AppendChild(cloneNode(k, true))
		}
	}
	return c
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// valueString converts assignments the way DOM string setters do, with
// null mapping to the empty string.
func valueString(v goja.Value) string {
	if v == nil || goja.IsNull(v) || goja.IsUndefined(v) {
		if v != nil && goja.IsUndefined(v) {
			return "undefined"
		}
		return ""
	}
	return v.String()
}
