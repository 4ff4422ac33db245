package preview

import (
	"strings"

	"github.com/GriffinCanCode/livepen/internal/shared/types"
)

// OverlayID is the element the fault harness writes into.
const OverlayID = "runtime-error-display"

// OverlayPrefix precedes the fault message in the overlay text.
const OverlayPrefix = "JavaScript Error: "

// faultHarness installs a window error listener and defines handleError,
// which lazily creates the overlay and replaces its text on every fault.
const faultHarness = `
const handleError = (error) => {
  console.error(error);
  const message = (error !== null && error !== undefined && error.message !== undefined) ? error.message : String(error);
  const body = document.querySelector('body');
  if (body) {
    let errorDiv = document.getElementById('` + OverlayID + `');
    if (!errorDiv) {
      errorDiv = document.createElement('div');
      errorDiv.id = '` + OverlayID + `';
      errorDiv.style.position = 'fixed';
      errorDiv.style.bottom = '10px';
      errorDiv.style.left = '10px';
      errorDiv.style.padding = '12px';
      errorDiv.style.backgroundColor = 'rgba(239, 68, 68, 0.9)';
      errorDiv.style.color = 'white';
      errorDiv.style.fontFamily = 'monospace';
      errorDiv.style.fontSize = '14px';
      errorDiv.style.borderRadius = '8px';
      errorDiv.style.zIndex = '9999';
      body.appendChild(errorDiv);
    }
    errorDiv.textContent = '` + OverlayPrefix + `' + message;
  }
};

window.addEventListener('error', (event) => {
  handleError(event.error);
});
`

// Assemble builds the executable document for a composite. Style goes into
// the head, markup into the body, and the script runs last inside the fault
// harness. All three are embedded verbatim.
func Assemble(c types.Composite) string {
	var b strings.Builder
	b.Grow(len(c.Markup) + len(c.Style) + len(c.Script) + len(faultHarness) + 256)

	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<style>")
	b.WriteString(c.Style)
	b.WriteString("</style>\n</head>\n<body>\n")
	b.WriteString(c.Markup)
	b.WriteString("\n<script>")
	b.WriteString(faultHarness)
	b.WriteString("\ntry {\n")
	b.WriteString(c.Script)
	b.WriteString("\n} catch (error) {\n  handleError(error);\n}\n</script>\n</body>\n</html>\n")
	return b.String()
}
