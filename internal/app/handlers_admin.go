package app

import (
	"fmt"
	"net/http"
	"strconv"
)

// GET /admin/:sessionId -> remote control panel
func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.isSession(r.URL.Path, "/admin/") {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	st := s.ctl.Status()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Danmaku Control - %s</title>
  <style>
    :root { color-scheme: light dark; }
    body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', 'Noto Sans JP', Meiryo, Arial, sans-serif; margin: 24px; }
    .wrap { max-width: 640px; margin: 0 auto; }
    h1 { margin-bottom: 4px; }
    .hint { color: #888; font-size: 12px; margin-bottom: 16px; }
    label { display:block; margin: 12px 0 6px; font-weight: 600; }
    input, button { font-size:16px; padding:10px; }
    .row { display:flex; gap:12px; align-items:center; flex-wrap: wrap; }
    .status { margin-top: 12px; min-height: 1.4em; white-space: pre-wrap; }
    button { cursor: pointer; }
    img.qr { width: 200px; height: 200px; }
  </style>
</head>
<body>
  <div class="wrap">
    <h1>Danmaku</h1>
    <p class="hint">Session: <code>%s</code></p>
    <div class="row">
      <button id="toggleBtn">Toggle</button>
      <button id="seekBtn">Re-layout</button>
      <button id="reloadBtn">Reload</button>
    </div>
    <label for="delay">Delay step (seconds)</label>
    <div class="row">
      <input id="delay" type="number" step="0.1" value="0.5" />
      <button id="delayMinus">-</button>
      <button id="delayPlus">+</button>
    </div>
    <label for="speed">Scroll speed</label>
    <div class="row">
      <input id="speed" type="number" min="0.1" step="0.1" value="%s" />
      <button id="applySpeed">Apply</button>
    </div>
    <label for="sources">Hidden sources (bilibili, gamer, acfun, qq, iqiyi, d, dandan)</label>
    <div class="row">
      <input id="sources" value="%s" placeholder="empty restores the configured list" />
      <button id="applySources">Apply</button>
    </div>
    <label>Overlay</label>
    <img class="qr" src="/qr" alt="overlay QR" />
    <div class="status" id="status"></div>
  </div>
  <script>
  (function(){
    const sessionId = %q;
    const status = document.getElementById('status');
    function setStatus(t){ status.textContent = t; }
    async function post(action, value){
      const res = await fetch('/sessions/' + sessionId + '/' + action, {
        method:'POST', headers:{'Content-Type':'application/json'},
        body: JSON.stringify({value: value === undefined ? '' : String(value)})
      });
      if (!res.ok){ setStatus('error: ' + await res.text()); return; }
      const st = await res.json();
      setStatus((st.enabled ? 'on' : 'off') + ', ' + st.comments + ' comments, delay ' + st.delay.toFixed(2) + 's');
    }
    const delay = document.getElementById('delay');
    document.getElementById('toggleBtn').addEventListener('click', ()=> post('toggle'));
    document.getElementById('seekBtn').addEventListener('click', ()=> post('seek'));
    document.getElementById('reloadBtn').addEventListener('click', ()=> post('reload'));
    document.getElementById('delayMinus').addEventListener('click', ()=> post('delay', -(parseFloat(delay.value)||0)));
    document.getElementById('delayPlus').addEventListener('click', ()=> post('delay', parseFloat(delay.value)||0));
    document.getElementById('applySpeed').addEventListener('click', ()=> post('speed', document.getElementById('speed').value));
    document.getElementById('applySources').addEventListener('click', ()=> post('filter-source', document.getElementById('sources').value));
  })();
  </script>
</body>
</html>`, s.session, s.session, strconv.FormatFloat(st.ScrollSpeed, 'f', -1, 64), st.Override, s.session)
}
