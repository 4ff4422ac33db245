package http

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/livepen/internal/domain/preview"
	"github.com/GriffinCanCode/livepen/internal/shared/types"
)

type pageSlot struct {
	Kind    types.Kind
	Label   string
	Active  *types.Buffer
	Buffers []types.Buffer
}

type pageData struct {
	Slots    []pageSlot
	Viewport preview.Viewport
	Modes    []preview.ViewMode
	Sandbox  string
	Seq      uint64
}

var hostPage = template.Must(template.New("host").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>LivePen</title>
<style>
body { margin: 0; font-family: system-ui, sans-serif; display: flex; height: 100vh; }
#editors { width: 45%; display: flex; flex-direction: column; border-right: 1px solid #ddd; }
.slot { flex: 1; display: flex; flex-direction: column; border-bottom: 1px solid #eee; }
.slot header { display: flex; gap: 6px; align-items: center; padding: 4px 8px; background: #f5f5f5; }
.slot header button.active { font-weight: bold; }
.slot textarea { flex: 1; font-family: monospace; font-size: 13px; border: 0; padding: 8px; resize: none; }
#stage { flex: 1; display: flex; flex-direction: column; align-items: center; background: #fafafa; }
#stage.full { position: fixed; inset: 0; z-index: 10; }
#toolbar { padding: 6px; display: flex; gap: 6px; }
#preview { border: 1px solid #ccc; background: white; }
</style>
</head>
<body>
<section id="editors">
{{range .Slots}}
  <div class="slot" data-kind="{{.Kind}}">
    <header>
      <strong>{{.Label}}</strong>
      {{$active := .Active}}
      {{range .Buffers}}
        <span class="file">
          <button data-id="{{.ID}}" data-name="{{.Name}}"{{if and $active (eq .ID $active.ID)}} class="active"{{end}}>{{.Name}}</button>
          <button data-rename="{{.ID}}" data-name="{{.Name}}" title="Rename file">&#9998;</button>
          <button data-delete="{{.ID}}" data-name="{{.Name}}" title="Delete file">&times;</button>
        </span>
      {{end}}
      <button data-create="{{.Kind}}" title="New file">+</button>
    </header>
    <textarea spellcheck="false" data-kind="{{.Kind}}"{{if not .Active}} disabled{{end}}>{{if .Active}}{{.Active.Content}}{{end}}</textarea>
  </div>
{{end}}
</section>
<section id="stage"{{if .Viewport.FullScreen}} class="full"{{end}}>
  <div id="toolbar">
    {{range .Modes}}<button data-mode="{{.}}">{{.}}</button>{{end}}
    <button id="fullscreen">full screen</button>
    <a href="/export.zip">export</a>
  </div>
  <iframe id="preview" title="preview" sandbox="{{.Sandbox}}"
    style="width: {{.Viewport.Width}}; height: {{.Viewport.Height}};"
    src="/preview/document?seq={{.Seq}}"></iframe>
</section>
<script>
(() => {
  const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/stream');
  const send = (msg) => ws.readyState === WebSocket.OPEN && ws.send(JSON.stringify(msg));
  const frame = document.getElementById('preview');
  const stage = document.getElementById('stage');

  document.querySelectorAll('textarea[data-kind]').forEach((area) => {
    area.addEventListener('input', () => send({type: 'update', kind: area.dataset.kind, content: area.value}));
  });
  document.querySelectorAll('button[data-id]').forEach((btn) => {
    btn.addEventListener('click', () => send({type: 'select', id: btn.dataset.id}));
    btn.addEventListener('dblclick', () => rename(btn));
  });
  const rename = (btn) => {
    const name = window.prompt('Rename file', btn.dataset.name);
    if (name && name.trim() && name.trim() !== btn.dataset.name) {
      send({type: 'rename', id: btn.dataset.id || btn.dataset.rename, name: name.trim()});
    }
  };
  document.querySelectorAll('button[data-rename]').forEach((btn) => {
    btn.addEventListener('click', () => rename(btn));
  });
  document.querySelectorAll('button[data-delete]').forEach((btn) => {
    btn.addEventListener('click', () => {
      if (window.confirm('Are you sure you want to delete ' + btn.dataset.name + '?')) {
        send({type: 'delete', id: btn.dataset.delete});
      }
    });
  });
  document.querySelectorAll('button[data-create]').forEach((btn) => {
    btn.addEventListener('click', () => {
      const name = window.prompt('New ' + btn.dataset.create + ' file name');
      if (name && name.trim()) send({type: 'create', kind: btn.dataset.create, name: name.trim()});
    });
  });
  document.querySelectorAll('button[data-mode]').forEach((btn) => {
    btn.addEventListener('click', () => send({type: 'viewport', mode: btn.dataset.mode}));
  });
  document.getElementById('fullscreen').addEventListener('click', () => {
    send({type: 'viewport', full_screen: !stage.classList.contains('full')});
  });

  ws.addEventListener('message', (ev) => {
    const msg = JSON.parse(ev.data);
    switch (msg.type) {
    case 'frame':
      frame.src = '/preview/document?seq=' + msg.frame.seq;
      break;
    case 'viewport':
      frame.style.width = msg.viewport.width;
      frame.style.height = msg.viewport.height;
      stage.classList.toggle('full', msg.viewport.full_screen);
      break;
    case 'workspace':
      if (msg.op && msg.op !== 'update') location.reload();
      break;
    }
  });
})();
</script>
</body>
</html>
`))

// Root serves the editor shell with the preview iframe
func (h *Handlers) Root(c *gin.Context) {
	ws := h.store.Snapshot()
	frame, _ := h.renderer.Current()

	data := pageData{
		Viewport: h.renderer.Viewport(),
		Modes:    preview.ViewModes,
		Sandbox:  IframeSandbox,
		Seq:      frame.Seq,
	}
	for _, kind := range types.Kinds {
		slot := pageSlot{Kind: kind, Label: kind.Label()}
		activeID, hasActive := ws.Active.Get(kind)
		for i := range ws.Buffers {
			buf := ws.Buffers[i]
			if buf.Kind != kind {
				continue
			}
			slot.Buffers = append(slot.Buffers, buf)
			if hasActive && buf.ID == activeID {
				slot.Active = &buf
			}
		}
		data.Slots = append(data.Slots, slot)
	}

	var out bytes.Buffer
	if err := hostPage.Execute(&out, data); err != nil {
		h.log.Error("host page render failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "page render failed"})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", out.Bytes())
}
