package renderer

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/fredcamaral/mdlive/internal/domain/entities"
)

// PageData feeds the preview page
type PageData struct {
	Title      string
	Theme      entities.Theme
	Body       string
	PanEnabled bool
}

// PageRenderer renders the browser shell around the preview tree
type PageRenderer struct {
	templates *template.Template
}

// NewPageRenderer parses the built-in page template
func NewPageRenderer() (*PageRenderer, error) {
	tmpl := template.New("page").Funcs(template.FuncMap{
		"safeHTML": func(s string) template.HTML {
			return template.HTML(s) // #nosec G203 - preview content is the local user's own markdown
		},
	})

	if _, err := tmpl.Parse(pageTemplate); err != nil {
		return nil, fmt.Errorf("parsing page template: %w", err)
	}

	return &PageRenderer{templates: tmpl}, nil
}

// Render renders the page
func (r *PageRenderer) Render(data PageData) ([]byte, error) {
	if data.Title == "" {
		data.Title = "mdlive"
	}
	if !data.Theme.Valid() {
		data.Theme = entities.ThemeLight
	}

	view := struct {
		PageData
		Background string
		Foreground string
	}{
		PageData:   data,
		Background: data.Theme.Background(),
		Foreground: data.Theme.Foreground(),
	}

	var buf bytes.Buffer
	if err := r.templates.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("executing page template: %w", err)
	}
	return buf.Bytes(), nil
}

const pageTemplate = `<!DOCTYPE html>
<html lang="en" data-theme="{{.Theme}}">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}}</title>
<style>
body { margin: 0; font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Helvetica, Arial, sans-serif; background: {{.Background}}; color: {{.Foreground}}; }
#preview { max-width: 960px; margin: 0 auto; padding: 2rem; line-height: 1.6; }
.code-block { margin: 1rem 0; border-radius: 0.5rem; overflow: hidden; }
.code-header { padding: 0.25rem 1rem; font-size: 0.8rem; opacity: 0.7; }
.code-block pre { margin: 0; padding: 1rem; overflow-x: auto; }
.mermaid-container { position: relative; margin: 1rem 0; overflow: auto; }
.mermaid-download-btn { position: absolute; top: 0.5rem; right: 0.5rem; opacity: 0; transition: opacity 0.2s; }
.mermaid-container:hover .mermaid-download-btn { opacity: 1; }
.mermaid-error { color: #b91c1c; border: 1px solid #fca5a5; border-radius: 0.25rem; padding: 0.75rem; margin: 1rem 0; }
.mermaid-error pre { white-space: pre-wrap; font-size: 0.75rem; }
</style>
</head>
<body>
<div id="preview">{{safeHTML .Body}}</div>
<script>
(function () {
  var panEnabled = {{.PanEnabled}};
  var ws, pendingDownload = null;
  function send(msg) { if (ws && ws.readyState === 1) ws.send(JSON.stringify(msg)); }
  function slot(id) { return document.querySelector('.code-block-placeholder[data-block-id="' + id + '"]'); }
  function blockOf(el) { var s = el.closest('.code-block-placeholder'); return s ? s.getAttribute('data-block-id') : null; }
  function applyScroll(id, left, top) {
    var s = slot(id); if (!s) return;
    var w = s.querySelector('.mermaid-container'); if (w) { w.scrollLeft = left; w.scrollTop = top; }
  }
  function connect() {
    ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');
    ws.onmessage = function (e) {
      var ev = JSON.parse(e.data), d = ev.data || {};
      if (ev.type === 'preview') { document.getElementById('preview').innerHTML = d.html; document.title = d.title || 'mdlive'; }
      if (ev.type === 'slot') { var s = slot(d.block_id); if (s) { s.innerHTML = d.html; s.setAttribute('data-zoom-scale', d.scale); } }
      if (ev.type === 'zoom') { var z = slot(d.block_id); if (z) { z.setAttribute('data-zoom-scale', d.scale); var v = z.querySelector('.mermaid-svg'); if (v) { v.style.transform = 'scale(' + d.scale + ')'; v.style.transformOrigin = '0 0'; } } }
      if (ev.type === 'pan') applyScroll(d.block_id, d.scroll_left, d.scroll_top);
      if (ev.type === 'download' && d.block_id === pendingDownload) { pendingDownload = null; var a = document.createElement('a'); a.href = d.url + '?format=png'; document.body.appendChild(a); a.click(); a.remove(); }
      if (ev.type === 'theme') { document.documentElement.setAttribute('data-theme', d.theme); document.body.style.background = d.background; document.body.style.color = d.foreground; }
    };
    ws.onclose = function () { setTimeout(connect, 1000); };
  }
  var preview = document.getElementById('preview');
  preview.addEventListener('wheel', function (e) {
    if (!e.target.closest('.mermaid-container')) return;
    var mod = e.ctrlKey || e.metaKey;
    if (!mod) e.preventDefault();
    send({ type: 'zoom', block_id: blockOf(e.target), delta_y: e.deltaY, ctrl: e.ctrlKey, meta: e.metaKey });
  }, { passive: false });
  preview.addEventListener('dblclick', function (e) {
    if (e.target.closest('.mermaid-container')) send({ type: 'zoom_reset', block_id: blockOf(e.target) });
  });
  ['mousedown', 'mousemove', 'mouseup', 'mouseleave'].forEach(function (name) {
    preview.addEventListener(name, function (e) {
      if (!panEnabled || !e.target.closest || !e.target.closest('.mermaid-container')) return;
      var phase = { mousedown: 'down', mousemove: 'move', mouseup: 'up', mouseleave: 'leave' }[name];
      if (phase === 'move' && e.buttons !== 1) return;
      send({ type: 'pan', block_id: blockOf(e.target), phase: phase, button: e.button, x: e.clientX, y: e.clientY });
    }, true);
  });
  preview.addEventListener('click', function (e) {
    var b = e.target.closest('.mermaid-download-btn');
    if (!b) return;
    e.preventDefault();
    pendingDownload = b.getAttribute('data-block-id');
    send({ type: 'download', block_id: pendingDownload });
  });
  connect();
})();
</script>
</body>
</html>
`
