package web

import (
	"html/template"
	"strings"
)

var dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <meta http-equiv="refresh" content="{{.refresh}}">
    <title>NetSupport Monitor</title>
    <script src="https://cdn.jsdelivr.net/npm/mermaid/dist/mermaid.min.js"></script>
    <style>
        * { box-sizing: border-box; margin: 0; padding: 0; }

        :root {
            --bg-primary: #0a0f0a;
            --bg-card: rgba(0, 40, 0, 0.4);
            --border-color: #1a4a1a;
            --text-primary: #00ff41;
            --text-secondary: #00cc33;
            --text-dim: #336633;
            --accent: #00ff41;
            --accent-glow: rgba(0, 255, 65, 0.3);
            --danger: #ff3333;
            --success: #00ff41;
            --gradient-top: rgba(0, 50, 0, 0.3);
        }

        body {
            font-family: 'Courier New', monospace;
            background: var(--bg-primary);
            background-image: radial-gradient(ellipse at top, var(--gradient-top) 0%, transparent 50%);
            color: var(--text-primary);
            min-height: 100vh;
            padding: 1.5rem;
        }

        .container { max-width: 1200px; margin: 0 auto; }

        header {
            display: flex;
            justify-content: space-between;
            align-items: center;
            margin-bottom: 1.5rem;
            padding-bottom: 1rem;
            border-bottom: 1px solid var(--border-color);
        }

        h1 {
            font-size: 1.6rem;
            color: var(--accent);
            text-shadow: 0 0 10px var(--accent-glow);
            letter-spacing: 3px;
        }

        .grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(320px, 1fr)); gap: 1rem; margin-bottom: 1rem; }

        .card {
            background: var(--bg-card);
            border: 1px solid var(--border-color);
            padding: 1rem;
            position: relative;
        }
        .card-title {
            font-size: 0.85rem;
            color: var(--text-secondary);
            margin-bottom: 0.75rem;
            text-transform: uppercase;
            letter-spacing: 1px;
        }
        .card-title::before { content: '> '; color: var(--accent); }

        .verdict { font-size: 2.4rem; font-weight: bold; letter-spacing: 4px; }
        .verdict.safe { color: var(--success); text-shadow: 0 0 12px var(--accent-glow); }
        .verdict.connected { color: var(--danger); text-shadow: 0 0 12px rgba(255, 50, 50, 0.5); }

        .stat-row { display: flex; justify-content: space-between; padding: 0.4rem 0; border-bottom: 1px dashed var(--border-color); }
        .stat-label { color: var(--text-dim); font-size: 0.85rem; }
        .stat-value { color: var(--accent); font-weight: bold; font-size: 0.85rem; }

        .status-badge { padding: 0.15rem 0.5rem; font-size: 0.7rem; text-transform: uppercase; }
        .status-running { background: rgba(0,255,100,0.15); color: var(--success); border: 1px solid var(--success); }
        .status-stopped { background: rgba(255,50,50,0.15); color: var(--danger); border: 1px solid var(--danger); }

        table { width: 100%; border-collapse: collapse; font-size: 0.8rem; }
        th, td { text-align: left; padding: 0.5rem; }
        th { color: var(--text-secondary); font-weight: normal; text-transform: uppercase; font-size: 0.7rem; border-bottom: 1px solid var(--border-color); }
        td { border-bottom: 1px dashed var(--border-color); }
        td.active { color: var(--danger); }

        .btn {
            display: inline-block;
            padding: 0.5rem 1rem;
            color: var(--accent);
            border: 1px solid var(--accent);
            text-decoration: none;
            font-size: 0.75rem;
            text-transform: uppercase;
            margin-left: 0.5rem;
        }
        .btn:hover { background: var(--accent-glow); }

        .empty-state { color: var(--text-dim); font-size: 0.8rem; padding: 0.5rem 0; }
        .mermaid { background: #f4f4f4; padding: 0.5rem; }
        footer { color: var(--text-dim); font-size: 0.7rem; margin-top: 1rem; }
    </style>
</head>
<body>
<div class="container">
    <header>
        <h1>NSMON</h1>
        <div>
            {{if .status.Running}}<span class="status-badge status-running">daemon running (pid {{.status.PID}})</span>
            {{else}}<span class="status-badge status-stopped">daemon stopped</span>{{end}}
            <a class="btn" href="/report?format=markdown">Report</a>
            <a class="btn" href="/report?format=json">JSON</a>
        </div>
    </header>

    <div class="grid">
        <div class="card">
            <div class="card-title">Status</div>
            {{if .status.Connected}}<div class="verdict connected">CONNECTED</div>
            {{else}}<div class="verdict safe">SAFE</div>{{end}}
            <div class="stat-row"><span class="stat-label">Last check</span>
                <span class="stat-value">{{if .status.LastCheck}}{{.status.LastCheck}}{{else}}never{{end}}{{if .status.Stale}} (stale){{end}}</span></div>
            <div class="stat-row"><span class="stat-label">Method used</span><span class="stat-value">{{or .status.MethodUsed "n/a"}}</span></div>
            <div class="stat-row"><span class="stat-label">Configured method</span><span class="stat-value">{{.status.DetectionMethod}}</span></div>
            <div class="stat-row"><span class="stat-label">Scan interval</span><span class="stat-value">{{.status.ScanInterval}}s</span></div>
            {{if .status.Uptime}}<div class="stat-row"><span class="stat-label">Uptime</span><span class="stat-value">{{.status.Uptime}}</span></div>{{end}}
        </div>

        <div class="card">
            <div class="card-title">Statistics</div>
            {{with .stats}}
            <div class="stat-row"><span class="stat-label">Connections today</span><span class="stat-value">{{.ConnectionsToday}}</span></div>
            <div class="stat-row"><span class="stat-label">Total connections</span><span class="stat-value">{{.TotalConnections}}</span></div>
            <div class="stat-row"><span class="stat-label">Total connected time</span><span class="stat-value">{{$.total_duration}}</span></div>
            <div class="stat-row"><span class="stat-label">Last reset</span><span class="stat-value">{{.LastReset}}</span></div>
            {{else}}
            <p class="empty-state">> No statistics recorded yet</p>
            {{end}}
        </div>
    </div>

    <div class="card" style="margin-bottom:1rem">
        <div class="card-title">Sessions (24h)</div>
        {{if .gantt}}<pre class="mermaid">{{.gantt}}</pre>
        {{else}}<p class="empty-state">> No remote sessions in the last 24h</p>{{end}}
    </div>

    <div class="grid">
        <div class="card">
            <div class="card-title">Recent Sessions</div>
            {{if .sessions}}
            <table>
                <tr><th>Started</th><th>Ended</th><th>Duration</th><th>Method</th></tr>
                {{range .sessions}}
                <tr><td>{{.Started}}</td><td{{if .Active}} class="active"{{end}}>{{.Ended}}</td><td>{{.Duration}}</td><td>{{.Method}}</td></tr>
                {{end}}
            </table>
            {{else}}<p class="empty-state">> No sessions recorded</p>{{end}}
        </div>

        <div class="card">
            <div class="card-title">Recent Events</div>
            {{if .events}}
            <table>
                <tr><th>Time</th><th>Type</th><th>Description</th></tr>
                {{range .events}}
                <tr><td>{{.Timestamp.Format "15:04:05"}}</td><td>{{.Type}}</td><td>{{.Description}}</td></tr>
                {{end}}
            </table>
            {{else}}<p class="empty-state">> No events in the last 24h</p>{{end}}
        </div>
    </div>

    <footer>Generated {{.generated_at}}. Refreshes every {{.refresh}}s.</footer>
</div>
<script>mermaid.initialize({ startOnLoad: true, theme: 'neutral' });</script>
</body>
</html>`

func getDashboardTemplate() *template.Template {
	return template.Must(template.New("dashboard").Parse(dashboardHTML))
}

// stripFence removes the markdown code fence around a mermaid block so it
// can be embedded in HTML.
func stripFence(block string) string {
	block = strings.TrimPrefix(block, "```mermaid\n")
	return strings.TrimSuffix(block, "```\n")
}
