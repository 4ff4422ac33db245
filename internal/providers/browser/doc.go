/*
Package browser selects the execution boundary that renders previews.

# Engines

  - sandbox: in-process goja runtimes with a Go DOM (default, no external process)
  - chrome: headless Chrome tabs driven over the DevTools protocol

Both implement preview.Boundary: every rebuild creates a fresh context and
destroys the previous one, so timers, listeners and fault overlays never
survive a rebuild.

# Usage Example

	boundary, err := browser.NewBoundary(browser.Config{Engine: browser.EngineSandbox}, log)
	if err != nil {
		return err
	}
	defer boundary.Close()
	renderer := preview.NewRenderer(boundary, log)
*/
package browser
