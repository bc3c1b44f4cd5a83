package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Fraudlens</title>
    <meta name="description" content="Real-time transaction fraud scoring">
    <link rel="icon" href="data:image/svg+xml,<svg xmlns='http://www.w3.org/2000/svg' viewBox='0 0 100 100'><text y='.9em' font-size='90'>&#9673;</text></svg>">
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }

        :root {
            --bg: #09090b;
            --bg-subtle: #18181b;
            --border: #27272a;
            --text: #fafafa;
            --text-secondary: #a1a1aa;
            --text-tertiary: #52525b;
            --green: #22c55e;
            --yellow: #eab308;
            --orange: #f97316;
            --red: #ef4444;
        }

        body {
            font-family: -apple-system, 'Segoe UI', sans-serif;
            background: var(--bg);
            color: var(--text);
            min-height: 100vh;
            font-size: 14px;
            line-height: 1.5;
        }

        .mono { font-family: ui-monospace, 'SF Mono', monospace; }

        .container { max-width: 1100px; margin: 0 auto; padding: 24px; }

        header {
            display: flex;
            align-items: baseline;
            justify-content: space-between;
            padding-bottom: 16px;
            border-bottom: 1px solid var(--border);
            margin-bottom: 24px;
        }
        header h1 { font-size: 18px; font-weight: 600; }
        header .status { color: var(--text-secondary); font-size: 12px; }
        header .status .dot { color: var(--green); }

        .stats {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(140px, 1fr));
            gap: 12px;
            margin-bottom: 24px;
        }
        .stat {
            background: var(--bg-subtle);
            border: 1px solid var(--border);
            border-radius: 8px;
            padding: 12px 16px;
        }
        .stat .label { color: var(--text-tertiary); font-size: 11px; text-transform: uppercase; letter-spacing: 0.05em; }
        .stat .value { font-size: 22px; font-weight: 600; margin-top: 2px; }

        .columns { display: grid; grid-template-columns: 1fr 1fr; gap: 24px; }
        @media (max-width: 800px) { .columns { grid-template-columns: 1fr; } }

        .panel h2 {
            font-size: 12px;
            text-transform: uppercase;
            letter-spacing: 0.05em;
            color: var(--text-secondary);
            margin-bottom: 12px;
        }

        .feed { display: flex; flex-direction: column; gap: 8px; }
        .item {
            background: var(--bg-subtle);
            border: 1px solid var(--border);
            border-radius: 8px;
            padding: 10px 14px;
            display: flex;
            justify-content: space-between;
            align-items: center;
            gap: 12px;
        }
        .item .left { min-width: 0; }
        .item .id { font-size: 12px; color: var(--text-secondary); overflow: hidden; text-overflow: ellipsis; }
        .item .detail { font-size: 13px; }
        .item .right { text-align: right; white-space: nowrap; }
        .item .amount { font-weight: 600; }

        .badge {
            display: inline-block;
            font-size: 11px;
            font-weight: 600;
            padding: 1px 8px;
            border-radius: 99px;
        }
        .badge.LOW { color: var(--green); background: rgba(34,197,94,0.12); }
        .badge.MEDIUM { color: var(--yellow); background: rgba(234,179,8,0.12); }
        .badge.HIGH { color: var(--orange); background: rgba(249,115,22,0.12); }
        .badge.CRITICAL { color: var(--red); background: rgba(239,68,68,0.12); }

        .empty { color: var(--text-tertiary); padding: 24px; text-align: center; }
    </style>
</head>
<body>
    <div class="container">
        <header>
            <h1>Fraudlens</h1>
            <div class="status"><span class="dot" id="ws-dot">&#9679;</span> <span id="ws-state">connecting</span></div>
        </header>

        <div class="stats">
            <div class="stat"><div class="label">Alerts</div><div class="value" id="stat-total">&ndash;</div></div>
            <div class="stat"><div class="label">Pending</div><div class="value" id="stat-pending">&ndash;</div></div>
            <div class="stat"><div class="label">Blocked $</div><div class="value" id="stat-blocked">&ndash;</div></div>
            <div class="stat"><div class="label">Avg score</div><div class="value" id="stat-avg">&ndash;</div></div>
        </div>

        <div class="columns">
            <div class="panel">
                <h2>Scored transactions</h2>
                <div class="feed" id="tx-feed"><div class="empty">Waiting for traffic&hellip;</div></div>
            </div>
            <div class="panel">
                <h2>Alerts</h2>
                <div class="feed" id="alert-feed"><div class="empty">No alerts yet</div></div>
            </div>
        </div>
    </div>

    <script>
        const MAX_ROWS = 25;

        function fmtUSD(n) {
            return '$' + Number(n || 0).toLocaleString(undefined, { minimumFractionDigits: 2, maximumFractionDigits: 2 });
        }

        function prepend(listEl, rowHTML) {
            const empty = listEl.querySelector('.empty');
            if (empty) empty.remove();
            listEl.insertAdjacentHTML('afterbegin', rowHTML);
            while (listEl.children.length > MAX_ROWS) listEl.removeChild(listEl.lastChild);
        }

        function txRow(d) {
            return '<div class="item">' +
                '<div class="left"><div class="detail">' + (d.accountId || '') + '</div>' +
                '<div class="id mono">' + (d.transactionId || '') + '</div></div>' +
                '<div class="right"><div class="amount">' + fmtUSD(d.amount) + '</div>' +
                '<span class="badge ' + (d.riskLevel || 'LOW') + '">' + (d.riskLevel || '') + ' ' + Number(d.score || 0).toFixed(3) + '</span></div>' +
                '</div>';
        }

        function alertRow(d, reviewed) {
            const status = reviewed ? (d.status || '') : 'PENDING';
            return '<div class="item">' +
                '<div class="left"><div class="detail">' + status + ' &middot; ' + (d.accountId || '') + '</div>' +
                '<div class="id mono">' + (d.alertId || '') + '</div></div>' +
                '<div class="right"><div class="amount">' + fmtUSD(d.amount) + '</div>' +
                '<span class="badge ' + (d.riskLevel || 'LOW') + '">' + (d.riskLevel || '') + ' ' + Number(d.score || 0).toFixed(3) + '</span></div>' +
                '</div>';
        }

        function connect() {
            const proto = location.protocol === 'https:' ? 'wss:' : 'ws:';
            const ws = new WebSocket(proto + '//' + location.host + '/ws');
            const dot = document.getElementById('ws-dot');
            const state = document.getElementById('ws-state');

            ws.onopen = () => {
                state.textContent = 'live';
                dot.style.color = 'var(--green)';
                ws.send(JSON.stringify({ allEvents: true }));
            };
            ws.onclose = () => {
                state.textContent = 'reconnecting';
                dot.style.color = 'var(--red)';
                setTimeout(connect, 2000);
            };
            ws.onmessage = (msg) => {
                let ev;
                try { ev = JSON.parse(msg.data); } catch { return; }
                const d = ev.data || {};
                if (ev.type === 'transaction.scored') {
                    prepend(document.getElementById('tx-feed'), txRow(d));
                } else if (ev.type === 'alert.created') {
                    prepend(document.getElementById('alert-feed'), alertRow(d, false));
                    loadStats();
                } else if (ev.type === 'alert.reviewed') {
                    prepend(document.getElementById('alert-feed'), alertRow(d, true));
                    loadStats();
                }
            };
        }

        async function loadStats() {
            try {
                const res = await fetch('/v1/stats');
                if (!res.ok) return;
                const body = await res.json();
                const s = body.stats || {};
                document.getElementById('stat-total').textContent = s.total ?? 0;
                document.getElementById('stat-pending').textContent = s.pending ?? 0;
                document.getElementById('stat-blocked').textContent = fmtUSD(s.blockedAmount);
                document.getElementById('stat-avg').textContent = Number(s.avgScore || 0).toFixed(3);
            } catch { /* server restarting; next interval retries */ }
        }

        async function loadRecent() {
            try {
                const res = await fetch('/v1/transactions?limit=' + MAX_ROWS);
                if (!res.ok) return;
                const body = await res.json();
                const list = body.transactions || [];
                const feed = document.getElementById('tx-feed');
                if (list.length > 0) {
                    feed.innerHTML = list.map(r => txRow({
                        transactionId: r.id,
                        accountId: r.accountId,
                        amount: r.amount,
                        score: r.score,
                        riskLevel: r.riskLevel
                    })).join('');
                }
            } catch { /* ignore */ }
        }

        async function loadAlerts() {
            try {
                const res = await fetch('/v1/alerts?limit=' + MAX_ROWS);
                if (!res.ok) return;
                const body = await res.json();
                const list = body.alerts || [];
                const feed = document.getElementById('alert-feed');
                if (list.length > 0) {
                    feed.innerHTML = list.map(a => alertRow({
                        alertId: a.id,
                        accountId: a.accountId,
                        amount: a.amount,
                        score: a.score,
                        riskLevel: a.riskLevel,
                        status: a.status
                    }, a.status !== 'PENDING')).join('');
                }
            } catch { /* ignore */ }
        }

        connect();
        loadStats();
        loadRecent();
        loadAlerts();
        setInterval(loadStats, 10000);
    </script>
</body>
</html>`

// dashboardHandler serves the live review dashboard
func dashboardHandler(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, dashboardHTML)
}
