/*
Package sandbox runs preview documents in isolated in-process execution
contexts built on the goja JavaScript engine.

# Overview

Each Runtime is one execution context:

  - A goja VM with a browser-like global scope (window, document, console,
    timers, events)
  - A DOM emulation over golang.org/x/net/html, queried with cascadia
    selectors through goquery
  - Its own event loop goroutine; every callback runs on the loop
  - A timer table that is torn down with the context

# Fault model

Uncaught exceptions from script blocks, timer callbacks and event listeners
never leave the runtime. They are recorded as Faults and dispatched to
window error listeners as an ErrorEvent, where the preview harness renders
them. Runaway code is interrupted by a per-task watchdog and reported the
same way.

# Isolation

Page scripts have no network, no storage and no host module access:

  - localStorage, sessionStorage and indexedDB throw a SecurityError
  - require, process, module and exports are not defined
  - External script sources are never fetched

# Usage

	boundary, err := sandbox.NewBoundary(sandbox.DefaultConfig(), log)
	if err != nil {
		return err
	}
	defer boundary.Close()

	h, err := boundary.Create(ctx, document)
	if err != nil {
		return err
	}
	defer boundary.Destroy(h)

	html, err := h.Snapshot(ctx)

Runtimes come from a Pool that keeps a few pre-warmed contexts ready. A
runtime is used for exactly one document and destroyed afterwards.
*/
package sandbox
