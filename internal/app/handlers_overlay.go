package app

import (
	"fmt"
	"net/http"
)

// GET /overlay/:sessionId -> HTML + JS overlay (transparent canvas) that
// draws the frames mirrored from the player.
func (s *Server) handleOverlay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.isSession(r.URL.Path, "/overlay/") {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Danmaku Overlay - %s</title>
  <style>
    html, body { margin:0; padding:0; background:transparent; height:100%%; overflow:hidden; }
    canvas { display:block; width:100vw; height:100vh; background:transparent; pointer-events:none; }
  </style>
</head>
<body>
  <canvas id="overlay"></canvas>
  <script>
  (function(){
    const sessionId = %q;
    const canvas = document.getElementById('overlay');
    const ctx = canvas.getContext('2d');
    let dpr = window.devicePixelRatio || 1;
    let width = 0, height = 0;
    let frame = null;

    function resize(){
      dpr = window.devicePixelRatio || 1;
      width = Math.floor(window.innerWidth);
      height = Math.floor(window.innerHeight);
      canvas.width = Math.floor(width * dpr);
      canvas.height = Math.floor(height * dpr);
      canvas.style.width = width + 'px';
      canvas.style.height = height + 'px';
      draw();
    }
    window.addEventListener('resize', resize);

    function draw(){
      ctx.setTransform(1,0,0,1,0,0);
      ctx.clearRect(0,0,canvas.width,canvas.height);
      if (!frame || !frame.width || !frame.height) return;
      const sx = width / frame.width, sy = height / frame.height;
      ctx.setTransform(dpr*sx,0,0,dpr*sy,0,0);
      ctx.textBaseline = 'top';
      ctx.globalAlpha = frame.opacity;
      ctx.lineWidth = 3;
      ctx.strokeStyle = '#000';
      for (const it of frame.items || []){
        ctx.font = 'bold ' + it.size + "px -apple-system, BlinkMacSystemFont, 'Segoe UI', 'Noto Sans JP', 'Noto Sans SC', Meiryo, Arial, sans-serif";
        ctx.strokeText(it.text, it.x, it.y);
        ctx.fillStyle = it.color || '#fff';
        ctx.fillText(it.text, it.x, it.y);
      }
    }
    resize();

    const wsProto = (location.protocol === 'https:') ? 'wss' : 'ws';
    const wsUrl = wsProto + '://' + location.host + '/ws/' + sessionId;
    let ws;
    function connect(){
      ws = new WebSocket(wsUrl);
      ws.addEventListener('message', (ev)=>{
        try {
          const msg = JSON.parse(ev.data);
          if (msg && msg.type === 'frame'){
            frame = msg;
          } else if (msg && msg.type === 'clear'){
            frame = null;
          }
          draw();
        } catch(e){}
      });
      ws.addEventListener('close', ()=> setTimeout(connect, 1000));
      ws.addEventListener('error', ()=> { try{ ws.close(); }catch{} });
    }
    connect();
  })();
  </script>
</body>
</html>`, s.session, s.session)
}
