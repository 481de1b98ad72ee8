package dashboard

import "net/http"

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(indexHTML))
}

const indexHTML = `<!DOCTYPE html>
<html>
<head>
    <title>procview</title>
    <meta charset="utf-8">
    <style>
        body { font-family: monospace; margin: 20px; background: #1e1e1e; color: #ddd; }
        h1 { font-size: 18px; }
        .grid { display: grid; grid-template-columns: repeat(4, 1fr); gap: 12px; }
        .card { background: #2b2b2b; padding: 12px; border-radius: 4px; }
        .card .value { font-size: 20px; color: #6cf; }
        table { width: 100%; border-collapse: collapse; margin-top: 16px; }
        th, td { text-align: left; padding: 2px 8px; border-bottom: 1px solid #333; }
        #status.connected { color: #6c6; }
        #status.disconnected { color: #c66; }
        .errors { color: #c66; }
    </style>
</head>
<body>
    <h1>procview <span id="status" class="disconnected">disconnected</span></h1>
    <div class="grid">
        <div class="card">Memory used<div class="value" id="mem">-</div></div>
        <div class="card">CPUs<div class="value" id="cpus">-</div></div>
        <div class="card">Processes<div class="value" id="procs">-</div></div>
        <div class="card">Uptime<div class="value" id="uptime">-</div></div>
    </div>
    <div class="errors" id="errors"></div>
    <table>
        <thead><tr><th>PID</th><th>User</th><th>State</th><th>RSS</th><th>Command</th></tr></thead>
        <tbody id="processes"></tbody>
    </table>
    <script>
        function render(snap) {
            if (snap.memory) {
                const used = snap.memory.total - snap.memory.available;
                document.getElementById('mem').textContent =
                    Math.round(used / 1024) + ' / ' + Math.round(snap.memory.total / 1024) + ' MB';
            }
            document.getElementById('cpus').textContent = (snap.cpus || []).length;
            document.getElementById('procs').textContent = (snap.processes || []).length;
            if (snap.misc && snap.misc.uptime != null) {
                document.getElementById('uptime').textContent = Math.round(snap.misc.uptime) + ' s';
            }
            document.getElementById('errors').textContent = (snap.errors || []).join('; ');

            const esc = s => String(s).replace(/&/g, '&amp;').replace(/</g, '&lt;').replace(/>/g, '&gt;');
            const rows = (snap.processes || []).slice()
                .sort((a, b) => b.rss - a.rss)
                .slice(0, 50)
                .map(p => '<tr><td>' + p.pid + '</td><td>' + esc(p.user || '') + '</td><td>' + p.state +
                    '</td><td>' + p.rss + '</td><td>' + esc(p.comm) + '</td></tr>');
            document.getElementById('processes').innerHTML = rows.join('');
        }

        function connect() {
            const proto = location.protocol === 'https:' ? 'wss://' : 'ws://';
            const ws = new WebSocket(proto + location.host + '/ws');
            const status = document.getElementById('status');
            ws.onopen = () => { status.textContent = 'connected'; status.className = 'connected'; };
            ws.onclose = () => {
                status.textContent = 'disconnected';
                status.className = 'disconnected';
                setTimeout(connect, 2000);
            };
            ws.onmessage = (event) => {
                const msg = JSON.parse(event.data);
                if (msg.type === 'snapshot') render(msg.data);
            };
        }
        connect();
    </script>
</body>
</html>`
