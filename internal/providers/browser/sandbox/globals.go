package sandbox

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

const (
	minInterval = 4 * time.Millisecond
	frameDelay  = 16 * time.Millisecond
)

// setupGlobals installs the window surface available to page scripts
func (r *Runtime) setupGlobals() error {
	vm := r.vm
	global := vm.GlobalObject()

	for _, name := range []string{"window", "self", "parent", "top", "frames"} {
		if err := vm.Set(name, global); err != nil {
			return err
		}
	}

	// Host module plumbing never reaches page scripts
	for _, name := range []string{"require", "process", "module", "exports"} {
		_ = global.Delete(name)
	}

	if err := vm.Set("console", r.newConsole()); err != nil {
		return err
	}

	storageDenied := func(name string) goja.Value {
		return vm.ToValue(func(goja.FunctionCall) goja.Value {
			r.throwDOMException("SecurityError", "Failed to read the '"+name+"' property from 'Window': The document is sandboxed and lacks the 'allow-same-origin' flag.")
			return nil
		})
	}
	for _, name := range []string{"localStorage", "sessionStorage", "indexedDB"} {
		if err := global.DefineAccessorProperty(name, storageDenied(name), nil, goja.FLAG_FALSE, goja.FLAG_TRUE); err != nil {
			return err
		}
	}

	globals := map[string]interface{}{
		"setTimeout":     r.setTimeout(false),
		"setInterval":    r.setTimeout(true),
		"clearTimeout":   r.clearTimer,
		"clearInterval":  r.clearTimer,
		"queueMicrotask": r.queueMicrotask,
		"requestAnimationFrame": func(call goja.FunctionCall) goja.Value {
			fn, ok := goja.AssertFunction(call.Argument(0))
			if !ok {
				panic(vm.NewTypeError("Failed to execute 'requestAnimationFrame' on 'Window': The callback provided as parameter 1 is not a function."))
			}
			return vm.ToValue(r.arm(frameDelay, false, func() error {
				_, err := fn(goja.Undefined(), vm.ToValue(float64(time.Now().UnixMilli())))
				return err
			}))
		},
		"cancelAnimationFrame": r.clearTimer,
		"addEventListener": func(call goja.FunctionCall) goja.Value {
			r.addListener(r.window, call.Argument(0).String(), call.Argument(1))
			return goja.Undefined()
		},
		"removeEventListener": func(call goja.FunctionCall) goja.Value {
			r.removeListener(r.window, call.Argument(0).String(), call.Argument(1))
			return goja.Undefined()
		},
		"dispatchEvent": func(call goja.FunctionCall) goja.Value {
			event, ok := call.Argument(0).(*goja.Object)
			if !ok {
				panic(vm.NewTypeError("Failed to execute 'dispatchEvent' on 'Window': parameter 1 is not of type 'Event'."))
			}
			return vm.ToValue(r.dispatchObject(r.window, event))
		},
		"Event":       r.eventConstructor,
		"CustomEvent": r.eventConstructor,
		// Modal dialogs are blocked in a sandboxed frame
		"alert":   func(goja.FunctionCall) goja.Value { return goja.Undefined() },
		"confirm": func(goja.FunctionCall) goja.Value { return vm.ToValue(false) },
		"prompt":  func(goja.FunctionCall) goja.Value { return goja.Null() },
	}
	for name, v := range globals {
		if err := vm.Set(name, v); err != nil {
			return err
		}
	}

	location := vm.NewObject()
	_ = location.Set("href", "about:srcdoc")
	_ = location.Set("protocol", "about:")
	_ = location.Set("origin", "null")
	_ = location.Set("reload", func() {})
	navigator := vm.NewObject()
	_ = navigator.Set("userAgent", "Mozilla/5.0 (LivePen Sandbox)")
	_ = navigator.Set("language", "en-US")
	if err := vm.Set("location", location); err != nil {
		return err
	}
	return vm.Set("navigator", navigator)
}

func (r *Runtime) newConsole() *goja.Object {
	console := r.vm.NewObject()
	for _, level := range []string{"log", "info", "warn", "error", "debug"} {
		lvl := level
		_ = console.Set(lvl, func(call goja.FunctionCall) goja.Value {
			if !r.config.EnableConsole {
				return goja.Undefined()
			}
			parts := make([]string, len(call.Arguments))
			for i, a := range call.Arguments {
				parts[i] = formatValue(a)
			}
			r.appendConsole(lvl, strings.Join(parts, " "))
			return goja.Undefined()
		})
	}
	return console
}

func formatValue(v goja.Value) string {
	if obj, ok := v.(*goja.Object); ok {
		if obj.ClassName() == "Error" {
			return obj.String()
		}
		if b, err := obj.MarshalJSON(); err == nil {
			return string(b)
		}
	}
	return v.String()
}

// ============================================================================
// Timers
// ============================================================================

// setTimeout builds setTimeout or setInterval. The callback may be a
// function or a string of code; extra arguments are passed through.
func (r *Runtime) setTimeout(interval bool) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		ms := call.Argument(1).ToFloat()
		if math.IsNaN(ms) || ms < 0 {
			ms = 0
		}
		delay := time.Duration(ms * float64(time.Millisecond))
		if interval && delay < minInterval {
			delay = minInterval
		}

		var run func() error
		if fn, ok := goja.AssertFunction(call.Argument(0)); ok {
			var args []goja.Value
			if len(call.Arguments) > 2 {
				args = append(args, call.Arguments[2:]...)
			}
			run = func() error {
				_, err := fn(goja.Undefined(), args...)
				return err
			}
		} else {
			code := call.Argument(0).String()
			run = func() error {
				_, err := r.vm.RunString(code)
				return err
			}
		}
		return r.vm.ToValue(r.arm(delay, interval, run))
	}
}

// arm registers a timer. One-shot timers count as pending work until they
// fire or are cleared.
func (r *Runtime) arm(delay time.Duration, interval bool, run func() error) int64 {
	r.timersMu.Lock()
	defer r.timersMu.Unlock()

	r.nextTimer++
	id := r.nextTimer
	if r.closed.Load() {
		return id
	}

	entry := &timerEntry{interval: interval}
	if !interval {
		r.pending.Add(1)
	}
	entry.t = time.AfterFunc(delay, func() {
		err := r.enqueue(context.Background(), "timer", func() error {
			r.fire(id, delay, run)
			return nil
		})
		if err != nil {
			r.log.Debug("timer dropped", zap.Int64("timer_id", id), zap.Error(err))
		}
	})
	r.timers[id] = entry
	return id
}

// fire runs on the loop. A timer cleared after its deadline but before its
// turn does not run.
func (r *Runtime) fire(id int64, delay time.Duration, run func() error) {
	r.timersMu.Lock()
	entry, ok := r.timers[id]
	if ok && !entry.interval {
		delete(r.timers, id)
	}
	r.timersMu.Unlock()
	if !ok {
		return
	}
	if !entry.interval {
		defer r.pending.Add(-1)
	}

	r.exec("timer", run)

	if entry.interval {
		r.timersMu.Lock()
		if _, live := r.timers[id]; live && !r.closed.Load() {
			entry.t.Reset(delay)
		}
		r.timersMu.Unlock()
	}
}

func (r *Runtime) clearTimer(call goja.FunctionCall) goja.Value {
	id := call.Argument(0).ToInteger()
	r.timersMu.Lock()
	if entry, ok := r.timers[id]; ok {
		entry.t.Stop()
		delete(r.timers, id)
		if !entry.interval {
			r.pending.Add(-1)
		}
	}
	r.timersMu.Unlock()
	return goja.Undefined()
}

func (r *Runtime) queueMicrotask(call goja.FunctionCall) goja.Value {
	fn, ok := goja.AssertFunction(call.Argument(0))
	if !ok {
		panic(r.vm.NewTypeError("Failed to execute 'queueMicrotask' on 'Window': The callback provided as parameter 1 is not a function."))
	}
	r.microtasks = append(r.microtasks, fn)
	return goja.Undefined()
}

// Timers reports the number of armed timers
func (r *Runtime) Timers() int {
	r.timersMu.Lock()
	defer r.timersMu.Unlock()
	return len(r.timers)
}
