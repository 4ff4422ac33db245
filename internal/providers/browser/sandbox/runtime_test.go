package sandbox

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/livepen/internal/domain/preview"
	"github.com/GriffinCanCode/livepen/internal/domain/workspace"
	"github.com/GriffinCanCode/livepen/internal/shared/id"
	"github.com/GriffinCanCode/livepen/internal/shared/types"
)

func newRuntime(t *testing.T, config Config) *Runtime {
	t.Helper()
	rt, err := New(config, id.NewHandleID(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { rt.Close() })
	return rt
}

// run loads document and waits for it and its one-shot timers to finish
func run(t *testing.T, rt *Runtime, document string) *goquery.Document {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, rt.Load(ctx, document))
	require.NoError(t, rt.Settle(ctx))
	return snapshot(t, rt)
}

func snapshot(t *testing.T, rt *Runtime) *goquery.Document {
	t.Helper()
	out, err := rt.Snapshot(context.Background())
	require.NoError(t, err)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(out))
	require.NoError(t, err)
	return doc
}

func overlay(doc *goquery.Document) string {
	return doc.Find("#" + preview.OverlayID).Text()
}

func assembled(markup, style, script string) string {
	return preview.Assemble(types.Composite{Markup: markup, Style: style, Script: script})
}

func TestSyncThrowShowsOverlay(t *testing.T) {
	rt := newRuntime(t, DefaultConfig())
	doc := run(t, rt, assembled("<p>hi</p>", "", "throw new Error('x')"))

	assert.Equal(t, "JavaScript Error: x", overlay(doc))
	assert.Equal(t, "hi", doc.Find("p").Text())
}

func TestNonErrorThrowUsesStringForm(t *testing.T) {
	rt := newRuntime(t, DefaultConfig())
	doc := run(t, rt, assembled("", "", "throw 'boom'"))

	assert.Equal(t, "JavaScript Error: boom", overlay(doc))
}

func TestAsyncThrowShowsOverlay(t *testing.T) {
	rt := newRuntime(t, DefaultConfig())
	doc := run(t, rt, assembled("<p>ok</p>", "", "setTimeout(() => { throw new Error('late') }, 10);"))

	assert.Equal(t, "JavaScript Error: late", overlay(doc))

	faults := rt.Faults()
	require.Len(t, faults, 1)
	assert.Equal(t, "late", faults[0].Message)
	assert.Equal(t, "timer", faults[0].Source)
}

func TestOverlayShowsLatestFault(t *testing.T) {
	rt := newRuntime(t, DefaultConfig())
	doc := run(t, rt, assembled("", "", `
setTimeout(() => { throw new Error('first') }, 5);
setTimeout(() => { throw new Error('second') }, 30);
`))

	assert.Equal(t, 1, doc.Find("#"+preview.OverlayID).Length())
	assert.Equal(t, "JavaScript Error: second", overlay(doc))
}

func TestCleanDocumentHasNoOverlay(t *testing.T) {
	rt := newRuntime(t, DefaultConfig())
	doc := run(t, rt, assembled("<h1>Title</h1>", "h1 { color: red; }", "document.querySelector('h1').textContent = 'Changed';"))

	assert.Equal(t, 0, doc.Find("#"+preview.OverlayID).Length())
	assert.Equal(t, "Changed", doc.Find("h1").Text())
	assert.Contains(t, doc.Find("style").Text(), "color: red")
	assert.Empty(t, rt.Faults())
}

func TestListenerFaultShowsOverlay(t *testing.T) {
	rt := newRuntime(t, DefaultConfig())
	run(t, rt, assembled(`<button id="b">go</button>`, "", `
document.getElementById('b').addEventListener('click', () => { throw new Error('click failed') });
`))

	require.NoError(t, rt.Dispatch(context.Background(), "#b", "click"))
	doc := snapshot(t, rt)

	assert.Equal(t, "JavaScript Error: click failed", overlay(doc))
	faults := rt.Faults()
	require.Len(t, faults, 1)
	assert.Equal(t, "listener", faults[0].Source)
}

func TestStarterClickChangesGreeting(t *testing.T) {
	var c types.Composite
	for _, buf := range workspace.StarterBuffers(id.NewSequence()) {
		c.Set(buf.Kind, buf.Content)
	}

	rt := newRuntime(t, DefaultConfig())
	doc := run(t, rt, preview.Assemble(c))
	assert.Equal(t, "Hello, Coder!", doc.Find("h1").Text())

	require.NoError(t, rt.Dispatch(context.Background(), "#myButton", "click"))
	doc = snapshot(t, rt)

	assert.Equal(t, "¡Hola!", doc.Find("h1").Text())
	style, _ := doc.Find("body").Attr("style")
	assert.Contains(t, style, "background-color: #")
	assert.Equal(t, 0, doc.Find("#"+preview.OverlayID).Length())
}

func TestWatchdogInterruptsRunawayScript(t *testing.T) {
	config := DefaultConfig()
	config.Timeout = 100 * time.Millisecond
	rt := newRuntime(t, config)

	doc := run(t, rt, `<html><body>
<script>while (true) {}</script>
<script>document.body.setAttribute('data-after', 'yes');</script>
</body></html>`)

	faults := rt.Faults()
	require.Len(t, faults, 1)
	assert.Contains(t, faults[0].Message, "timed out")
	assert.Equal(t, "script", faults[0].Source)

	after, ok := doc.Find("body").Attr("data-after")
	assert.True(t, ok, "later script blocks still run")
	assert.Equal(t, "yes", after)
}

func TestWatchdogFaultReachesOverlay(t *testing.T) {
	config := DefaultConfig()
	config.Timeout = 100 * time.Millisecond
	rt := newRuntime(t, config)

	doc := run(t, rt, assembled("", "", "for (;;) {}"))

	assert.True(t, strings.HasPrefix(overlay(doc), "JavaScript Error: Script execution timed out"))
}

func TestGlobalsAreWindowLike(t *testing.T) {
	rt := newRuntime(t, DefaultConfig())
	run(t, rt, "<html><body></body></html>")
	ctx := context.Background()

	tests := []struct {
		name   string
		script string
		want   interface{}
	}{
		{"window aliases", "window === self && window === top && window === parent && window === globalThis", true},
		{"require removed", "typeof require", "undefined"},
		{"process removed", "typeof process", "undefined"},
		{"module removed", "typeof module", "undefined"},
		{"exports removed", "typeof exports", "undefined"},
		{"no network", "typeof fetch + ':' + typeof XMLHttpRequest", "undefined:undefined"},
		{"localStorage denied", "try { localStorage.getItem('a'); 'allowed' } catch (e) { e.name }", "SecurityError"},
		{"sessionStorage denied", "try { sessionStorage; 'allowed' } catch (e) { e.name }", "SecurityError"},
		{"document bound", "document.body.tagName", "BODY"},
		{"timers present", "[typeof setTimeout, typeof setInterval, typeof clearTimeout, typeof clearInterval, typeof queueMicrotask].join()", "function,function,function,function,function"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := rt.Eval(ctx, tt.script)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDOMOperations(t *testing.T) {
	rt := newRuntime(t, DefaultConfig())
	doc := run(t, rt, `<html><head><title>Old</title></head><body>
<ul id="list"><li class="item a">one</li><li class="item">two</li></ul>
<script>
const list = document.getElementById('list');
const li = document.createElement('li');
li.className = 'item added';
li.appendChild(document.createTextNode('three'));
list.appendChild(li);

document.querySelectorAll('.item').forEach((el, i) => el.setAttribute('data-i', String(i)));
list.children[0].remove();
li.classList.add('last');
li.classList.remove('added');
li.style.fontWeight = 'bold';
li.style.backgroundColor = 'red';

const box = document.createElement('div');
box.id = 'box';
box.innerHTML = '<span>inner</span><em>x</em>';
document.body.appendChild(box);
box.removeChild(box.querySelector('em'));

document.title = 'New';
document.body.setAttribute('data-count', String(document.getElementsByTagName('li').length));
document.body.setAttribute('data-classes', String(document.getElementsByClassName('item').length));
</script>
</body></html>`)

	assert.Empty(t, rt.Faults())
	assert.Equal(t, 2, doc.Find("#list li").Length())
	assert.Equal(t, "two", doc.Find("#list li").First().Text())

	added := doc.Find("#list li").Last()
	assert.Equal(t, "three", added.Text())
	class, _ := added.Attr("class")
	assert.Equal(t, "item last", class)
	style, _ := added.Attr("style")
	assert.Equal(t, "font-weight: bold; background-color: red;", style)
	i, _ := added.Attr("data-i")
	assert.Equal(t, "2", i)

	assert.Equal(t, "<span>inner</span>", mustHTML(t, doc.Find("#box")))
	assert.Equal(t, "New", doc.Find("title").Text())
	count, _ := doc.Find("body").Attr("data-count")
	assert.Equal(t, "2", count)
	classes, _ := doc.Find("body").Attr("data-classes")
	assert.Equal(t, "2", classes)
}

func mustHTML(t *testing.T, s *goquery.Selection) string {
	t.Helper()
	out, err := s.Html()
	require.NoError(t, err)
	return out
}

func TestStyleReadsInlineDeclarations(t *testing.T) {
	rt := newRuntime(t, DefaultConfig())
	run(t, rt, `<html><body><div id="d" style="margin-top: 4px; color: blue"></div></body></html>`)

	got, err := rt.Eval(context.Background(), `
const s = document.getElementById('d').style;
s.color = '';
[s.marginTop, s.getPropertyValue('margin-top'), s.cssText].join('|')
`)
	require.NoError(t, err)
	assert.Equal(t, "4px|4px|margin-top: 4px;", got)
}

func TestInvalidSelectorThrowsSyntaxError(t *testing.T) {
	rt := newRuntime(t, DefaultConfig())
	run(t, rt, "<html><body></body></html>")

	got, err := rt.Eval(context.Background(), "try { document.querySelector('[['); 'ok' } catch (e) { e.name }")
	require.NoError(t, err)
	assert.Equal(t, "SyntaxError", got)
}

func TestEventsBubbleToAncestors(t *testing.T) {
	rt := newRuntime(t, DefaultConfig())
	run(t, rt, `<html><body><div id="outer"><button id="inner">b</button></div>
<script>
const seen = [];
document.getElementById('inner').addEventListener('click', () => seen.push('inner'));
document.getElementById('outer').addEventListener('click', (e) => seen.push('outer:' + e.target.id));
document.body.onclick = () => seen.push('body');
window.addEventListener('click', () => seen.push('window'));
window.seen = seen;
</script></body></html>`)

	require.NoError(t, rt.Dispatch(context.Background(), "#inner", "click"))
	got, err := rt.Eval(context.Background(), "seen.join(',')")
	require.NoError(t, err)
	assert.Equal(t, "inner,outer:inner,body,window", got)
}

func TestStopPropagation(t *testing.T) {
	rt := newRuntime(t, DefaultConfig())
	run(t, rt, `<html><body><div id="outer"><button id="inner">b</button></div>
<script>
window.hits = 0;
document.getElementById('inner').addEventListener('click', (e) => { hits++; e.stopPropagation(); });
document.getElementById('outer').addEventListener('click', () => { hits += 10; });
</script></body></html>`)

	require.NoError(t, rt.Dispatch(context.Background(), "#inner", "click"))
	got, err := rt.Eval(context.Background(), "hits")
	require.NoError(t, err)
	assert.EqualValues(t, 1, got)
}

func TestLoadEventsFire(t *testing.T) {
	rt := newRuntime(t, DefaultConfig())
	doc := run(t, rt, `<html><body>
<script>
document.addEventListener('DOMContentLoaded', () => document.body.setAttribute('data-ready', document.readyState));
window.addEventListener('load', () => document.body.setAttribute('data-load', document.readyState));
</script></body></html>`)

	ready, _ := doc.Find("body").Attr("data-ready")
	load, _ := doc.Find("body").Attr("data-load")
	assert.Equal(t, "interactive", ready)
	assert.Equal(t, "complete", load)
}

func TestMicrotasksAndPromises(t *testing.T) {
	rt := newRuntime(t, DefaultConfig())
	doc := run(t, rt, `<html><body>
<script>
queueMicrotask(() => document.body.setAttribute('data-micro', '1'));
Promise.resolve(2).then(v => document.body.setAttribute('data-promise', String(v)));
setTimeout((a, b) => document.body.setAttribute('data-args', a + b), 5, 'x', 'y');
</script></body></html>`)

	micro, _ := doc.Find("body").Attr("data-micro")
	promise, _ := doc.Find("body").Attr("data-promise")
	args, _ := doc.Find("body").Attr("data-args")
	assert.Equal(t, "1", micro)
	assert.Equal(t, "2", promise)
	assert.Equal(t, "xy", args)
}

func TestClearTimeoutCancelsCallback(t *testing.T) {
	rt := newRuntime(t, DefaultConfig())
	doc := run(t, rt, `<html><body>
<script>
const t = setTimeout(() => document.body.setAttribute('data-fired', '1'), 20);
clearTimeout(t);
</script></body></html>`)

	_, fired := doc.Find("body").Attr("data-fired")
	assert.False(t, fired)
	assert.Equal(t, 0, rt.Timers())
}

func TestConsoleCapture(t *testing.T) {
	rt := newRuntime(t, DefaultConfig())
	run(t, rt, `<html><body><script>console.log('a', 1, {b: 2}); console.warn('careful');</script></body></html>`)

	entries := rt.Console()
	require.Len(t, entries, 2)
	assert.Equal(t, "log", entries[0].Level)
	assert.Equal(t, `a 1 {"b":2}`, entries[0].Message)
	assert.Equal(t, "warn", entries[1].Level)
}

func TestConsoleDisabled(t *testing.T) {
	config := DefaultConfig()
	config.EnableConsole = false
	rt := newRuntime(t, config)
	run(t, rt, `<html><body><script>console.log('quiet');</script></body></html>`)

	assert.Empty(t, rt.Console())
}

func TestCloseStopsTimers(t *testing.T) {
	rt := newRuntime(t, DefaultConfig())
	ctx := context.Background()
	require.NoError(t, rt.Load(ctx, `<html><body><script>
window.ticks = 0;
setInterval(() => { ticks++; }, 5);
setTimeout(() => {}, 10000);
</script></body></html>`))

	assert.Eventually(t, func() bool {
		v, err := rt.Eval(ctx, "ticks")
		return err == nil && v != nil && v.(int64) >= 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, rt.Timers())

	require.NoError(t, rt.Close())
	assert.True(t, rt.Closed())
	assert.Equal(t, 0, rt.Timers())

	_, err := rt.Snapshot(ctx)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, rt.Settle(ctx), ErrClosed)

	// Close is idempotent
	assert.NoError(t, rt.Close())
}

func TestLoadOnlyOnce(t *testing.T) {
	rt := newRuntime(t, DefaultConfig())
	_, err := rt.Snapshot(context.Background())
	assert.ErrorIs(t, err, ErrNotLoaded)

	run(t, rt, "<p>a</p>")
	assert.Error(t, rt.Load(context.Background(), "<p>b</p>"))
}

func TestDispatchWithoutMatch(t *testing.T) {
	rt := newRuntime(t, DefaultConfig())
	run(t, rt, "<p>a</p>")

	err := rt.Dispatch(context.Background(), "#missing", "click")
	assert.ErrorIs(t, err, ErrNoMatch)

	err = rt.Dispatch(context.Background(), "[[", "click")
	assert.Error(t, err)
}

func TestExternalScriptsAreSkipped(t *testing.T) {
	rt := newRuntime(t, DefaultConfig())
	doc := run(t, rt, `<html><body>
<script src="https://example.com/x.js">document.body.setAttribute('data-src', '1');</script>
<script type="text/template">document.body.setAttribute('data-tpl', '1');</script>
</body></html>`)

	_, src := doc.Find("body").Attr("data-src")
	_, tpl := doc.Find("body").Attr("data-tpl")
	assert.False(t, src)
	assert.False(t, tpl)
}
