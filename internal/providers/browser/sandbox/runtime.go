package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/GriffinCanCode/livepen/internal/infrastructure/logging"
)

// errWatchdog is the interrupt value used when a task overruns its budget.
var errWatchdog = errors.New("watchdog")

// errDestroyed is the interrupt value used by Close.
var errDestroyed = errors.New("destroyed")

type task struct {
	source string
	fn     func() error
}

type timerEntry struct {
	t        *time.Timer
	interval bool
}

// Runtime is one execution context: a goja VM, its document, its timers and
// a single event-loop goroutine. All JavaScript runs on the loop.
type Runtime struct {
	id     string
	vm     *goja.Runtime
	config Config
	log    *zap.Logger

	tasks     chan task
	done      chan struct{}
	exited    chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
	loaded    atomic.Bool
	pending   atomic.Int64 // queued tasks plus armed one-shot timers

	// Loop-owned state
	doc        *html.Node
	dom        *domBinding
	window     *html.Node // key for window listeners
	listeners  map[*html.Node]map[string][]goja.Value
	events     map[*goja.Object]*eventState
	readyState string
	microtasks []goja.Callable
	reporting  bool
	depth      int // active guarded units

	timersMu  sync.Mutex
	timers    map[int64]*timerEntry
	nextTimer int64

	consoleMu sync.Mutex
	console   []LogEntry
	faults    []Fault
}

// New creates a runtime with its globals installed and its loop running.
// The runtime has no document until Load is called.
func New(config Config, handleID string, log *zap.Logger) (*Runtime, error) {
	config = config.withDefaults()
	if log == nil {
		log = zap.NewNop()
	}

	vm := goja.New()
	vm.SetMaxCallStackSize(config.MaxCallStack)

	r := &Runtime{
		id:         handleID,
		vm:         vm,
		config:     config,
		log:        log.With(logging.Handle(handleID)),
		tasks:      make(chan task, config.QueueSize),
		done:       make(chan struct{}),
		exited:     make(chan struct{}),
		window:     &html.Node{Type: html.RawNode, Data: "window"},
		listeners:  make(map[*html.Node]map[string][]goja.Value),
		events:     make(map[*goja.Object]*eventState),
		readyState: "loading",
		timers:     make(map[int64]*timerEntry),
	}

	if err := r.setupGlobals(); err != nil {
		return nil, fmt.Errorf("failed to setup globals: %w", err)
	}

	go r.loop()
	return r, nil
}

// ID identifies the execution context
func (r *Runtime) ID() string {
	return r.id
}

// Load parses document, binds it and queues its script blocks in document
// order followed by DOMContentLoaded and load. It does not wait for them.
func (r *Runtime) Load(ctx context.Context, document string) error {
	if r.closed.Load() {
		return ErrClosed
	}
	if !r.loaded.CompareAndSwap(false, true) {
		return errors.New("sandbox runtime already has a document")
	}

	doc, err := html.Parse(strings.NewReader(document))
	if err != nil {
		return fmt.Errorf("failed to parse document: %w", err)
	}
	scripts := collectScripts(doc)

	return r.enqueue(ctx, "script", func() error {
		r.doc = doc
		r.dom = newDOMBinding(r, doc)
		if err := r.vm.Set("document", r.dom.document); err != nil {
			return err
		}

		for i, s := range scripts {
			name := fmt.Sprintf("script-%d.js", i)
			r.exec("script", func() error {
				_, err := r.vm.RunScript(name, s)
				return err
			})
			r.drainMicrotasks()
			if r.closed.Load() {
				return nil
			}
		}

		r.setReadyState("interactive")
		r.dispatchEvent(doc, "DOMContentLoaded", true)
		r.drainMicrotasks()
		r.setReadyState("complete")
		r.dispatchEvent(r.window, "load", false)
		return nil
	})
}

// Snapshot serializes the current document
func (r *Runtime) Snapshot(ctx context.Context) (string, error) {
	var out string
	err := r.Do(ctx, func() error {
		if r.doc == nil {
			return ErrNotLoaded
		}
		var b strings.Builder
		if err := html.Render(&b, r.doc); err != nil {
			return err
		}
		out = b.String()
		return nil
	})
	return out, err
}

// Dispatch fires a DOM event of type eventType on the first element
// matching selector and waits for its listeners to finish.
func (r *Runtime) Dispatch(ctx context.Context, selector, eventType string) error {
	return r.Do(ctx, func() error {
		if r.doc == nil {
			return ErrNotLoaded
		}
		target, err := r.dom.queryFirst(r.doc, selector)
		if err != nil {
			return err
		}
		if target == nil {
			return fmt.Errorf("%w: %s", ErrNoMatch, selector)
		}
		if eventType == "click" {
			r.activate(target)
			return nil
		}
		r.dispatchEvent(target, eventType, true)
		return nil
	})
}

// Eval runs a script in the global scope and reports uncaught errors like
// any other script block. It returns the exported completion value.
func (r *Runtime) Eval(ctx context.Context, script string) (interface{}, error) {
	var out interface{}
	err := r.Do(ctx, func() error {
		r.exec("script", func() error {
			v, err := r.vm.RunString(script)
			if err == nil && v != nil && !goja.IsUndefined(v) && !goja.IsNull(v) {
				out = v.Export()
			}
			return err
		})
		return nil
	})
	return out, err
}

// Do runs fn on the loop and waits for it. Errors returned by fn are host
// errors; JavaScript faults never surface here.
func (r *Runtime) Do(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)
	if err := r.enqueue(ctx, "host", func() (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("sandbox host panic: %v", rec)
			}
			result <- err
		}()
		return fn()
	}); err != nil {
		return err
	}
	select {
	case err := <-result:
		return err
	case <-r.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Settle waits until no task is queued and no one-shot timer is armed.
// Intervals never settle, so they are not counted.
func (r *Runtime) Settle(ctx context.Context) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		if r.closed.Load() {
			return ErrClosed
		}
		if r.pending.Load() == 0 {
			return nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Console returns captured console output
func (r *Runtime) Console() []LogEntry {
	r.consoleMu.Lock()
	defer r.consoleMu.Unlock()
	return append([]LogEntry(nil), r.console...)
}

// Faults returns uncaught errors raised so far
func (r *Runtime) Faults() []Fault {
	r.consoleMu.Lock()
	defer r.consoleMu.Unlock()
	return append([]Fault(nil), r.faults...)
}

// Close stops the loop, every timer and any running script. It is safe to
// call more than once.
func (r *Runtime) Close() error {
	r.closeOnce.Do(func() {
		r.closed.Store(true)
		close(r.done)
		r.vm.Interrupt(errDestroyed)

		r.timersMu.Lock()
		for id, t := range r.timers {
			t.t.Stop()
			delete(r.timers, id)
		}
		r.timersMu.Unlock()

		<-r.exited
		r.log.Debug("runtime destroyed")
	})
	return nil
}

// Closed reports whether Close has been called
func (r *Runtime) Closed() bool {
	return r.closed.Load()
}

func (r *Runtime) loop() {
	defer close(r.exited)
	for {
		select {
		case <-r.done:
			return
		case t := <-r.tasks:
			// done wins over queued work
			if r.closed.Load() {
				r.pending.Add(-1)
				return
			}
			r.run(t)
			r.drainMicrotasks()
			r.pending.Add(-1)
		}
	}
}

func (r *Runtime) enqueue(ctx context.Context, source string, fn func() error) error {
	if r.closed.Load() {
		return ErrClosed
	}
	r.pending.Add(1)
	select {
	case r.tasks <- task{source: source, fn: fn}:
		return nil
	case <-r.done:
		r.pending.Add(-1)
		return ErrClosed
	case <-ctx.Done():
		r.pending.Add(-1)
		return ctx.Err()
	}
}

func (r *Runtime) run(t task) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("sandbox task panicked", zap.String("source", t.source), zap.Any("panic", rec))
		}
	}()
	if err := t.fn(); err != nil {
		r.log.Debug("sandbox task failed", zap.String("source", t.source), zap.Error(err))
	}
}

// exec runs one unit of page code and reports an uncaught error as a fault
// inside the runtime. Top-level units get their own watchdog. Nested units
// run under their caller's watchdog and let uncatchable errors unwind it.
func (r *Runtime) exec(source string, fn func() error) {
	if r.depth > 0 {
		if err := fn(); err != nil {
			if isUncatchable(err) {
				panic(err)
			}
			r.reportUncaught(source, err)
		}
		return
	}

	r.depth++
	err := r.guard(fn)
	r.depth--
	if err != nil && !r.closed.Load() {
		r.reportUncaught(source, err)
	}
}

func (r *Runtime) guard(fn func() error) (err error) {
	wd := time.AfterFunc(r.config.Timeout, func() {
		r.vm.Interrupt(errWatchdog)
	})
	defer func() {
		wd.Stop()
		if rec := recover(); rec != nil {
			if e, ok := rec.(error); ok && isUncatchable(e) {
				err = e
			} else {
				err = fmt.Errorf("sandbox panic: %v", rec)
			}
		}
		if !r.closed.Load() {
			r.vm.ClearInterrupt()
		}
	}()
	return fn()
}

func (r *Runtime) drainMicrotasks() {
	for len(r.microtasks) > 0 && !r.closed.Load() {
		fn := r.microtasks[0]
		r.microtasks = r.microtasks[1:]
		r.exec("microtask", func() error {
			_, err := fn(goja.Undefined())
			return err
		})
	}
	r.microtasks = nil
}

// reportUncaught records the fault and dispatches an ErrorEvent to window
// error listeners. Failures inside those listeners are swallowed.
func (r *Runtime) reportUncaught(source string, err error) {
	message, value := r.describe(err)

	r.consoleMu.Lock()
	r.faults = append(r.faults, Fault{Message: message, Source: source, Time: time.Now()})
	r.consoleMu.Unlock()
	r.log.Debug("uncaught error", zap.String("source", source), zap.String("message", message))

	if r.reporting {
		return
	}
	r.reporting = true
	defer func() { r.reporting = false }()

	event := r.newEvent("error", r.window, false)
	_ = event.Set("message", message)
	_ = event.Set("error", value)
	_ = event.Set("filename", "")
	_ = event.Set("lineno", 0)
	_ = event.Set("colno", 0)

	global := r.vm.GlobalObject()
	var calls []func() error
	if v := global.Get("onerror"); v != nil {
		if fn, ok := goja.AssertFunction(v); ok {
			calls = append(calls, func() error {
				_, err := fn(global, r.vm.ToValue(message), r.vm.ToValue(""), r.vm.ToValue(0), r.vm.ToValue(0), value)
				return err
			})
		}
	}
	for _, fn := range r.callbacksFor(r.window, "error") {
		calls = append(calls, func() error {
			_, err := fn(global, event)
			return err
		})
	}
	delete(r.events, event)

	for _, call := range calls {
		if r.depth > 0 {
			if err := call(); err != nil && isUncatchable(err) {
				panic(err)
			}
			continue
		}
		r.depth++
		err := r.guard(call)
		r.depth--
		if err != nil {
			r.log.Debug("error listener failed", zap.Error(err))
		}
	}
}

func isUncatchable(err error) bool {
	var interrupted *goja.InterruptedError
	var overflow *goja.StackOverflowError
	return errors.As(err, &interrupted) || errors.As(err, &overflow)
}

// describe turns a Go-side error into the message and error value a page
// would observe.
func (r *Runtime) describe(err error) (string, goja.Value) {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		msg := fmt.Sprintf("Script execution timed out after %s", r.config.Timeout)
		return msg, r.newError("Error", msg)
	}
	var overflow *goja.StackOverflowError
	if errors.As(err, &overflow) {
		msg := "Maximum call stack size exceeded"
		return msg, r.newError("RangeError", msg)
	}
	var ex *goja.Exception
	if errors.As(err, &ex) {
		v := ex.Value()
		if v == nil {
			return "undefined", goja.Undefined()
		}
		if obj, ok := v.(*goja.Object); ok {
			if m := obj.Get("message"); m != nil && !goja.IsUndefined(m) {
				return m.String(), v
			}
		}
		return v.String(), v
	}
	msg := err.Error()
	return msg, r.newError("Error", msg)
}

// newError constructs a JavaScript error object of the named class
func (r *Runtime) newError(class, message string) goja.Value {
	ctor := r.vm.Get(class)
	if ctor == nil {
		ctor = r.vm.Get("Error")
	}
	obj, err := r.vm.New(ctor, r.vm.ToValue(message))
	if err != nil {
		return r.vm.ToValue(message)
	}
	return obj
}

// throwDOMException panics with an Error whose name is set, the way DOM
// APIs report failures to scripts.
func (r *Runtime) throwDOMException(name, message string) {
	v := r.newError("Error", message)
	if obj, ok := v.(*goja.Object); ok {
		_ = obj.Set("name", name)
	}
	panic(v)
}

func (r *Runtime) appendConsole(level, msg string) {
	r.consoleMu.Lock()
	if len(r.console) >= r.config.ConsoleLimit {
		r.console = r.console[1:]
	}
	r.console = append(r.console, LogEntry{Level: level, Message: msg, Time: time.Now()})
	r.consoleMu.Unlock()
	r.log.Debug("console", zap.String("level", level), zap.String("message", msg))
}

func collectScripts(doc *html.Node) []string {
	var out []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "script" && isClassicScript(n) {
			var b strings.Builder
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.TextNode {
					b.WriteString(c.Data)
				}
			}
			out = append(out, b.String())
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out
}

func isClassicScript(n *html.Node) bool {
	for _, a := range n.Attr {
		switch a.Key {
		case "src":
			// External resources are never fetched
			return false
		case "type":
			t := strings.ToLower(strings.TrimSpace(a.Val))
			if t != "" && t != "text/javascript" && t != "application/javascript" {
				return false
			}
		}
	}
	return true
}
