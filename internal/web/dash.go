package web

import (
	"fmt"
	"net/http"
)

// Dashboard serves a self-contained monitor page. It polls the JSON API
// with the token taken from the page URL, so no build step and no assets.
func (h *Handlers) Dashboard(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexHTML)
}

const indexHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8"/>
  <meta name="viewport" content="width=device-width, initial-scale=1"/>
  <title>DEX Arbitrage Monitor</title>
  <style>
    :root { --bg:#f8fafc; --card:#fff; --muted:#6b7280; --chip:#e5e7eb; }
    body{margin:0;background:var(--bg);font:14px/1.4 ui-sans-serif,system-ui,-apple-system,Segoe UI,Roboto,Ubuntu; color:#111827;}
    .wrap{max-width:1080px;margin:24px auto;padding:0 16px;}
    .hdr{display:flex;align-items:flex-end;justify-content:space-between;margin-bottom:12px;}
    .state{font-size:12px;padding:2px 8px;border-radius:999px;background:#d1fae5;color:#065f46;}
    .state.down{background:#fee2e2;color:#991b1b;}
    table{width:100%;border-collapse:collapse;background:var(--card);border-radius:16px;overflow:hidden;box-shadow:0 10px 30px rgba(0,0,0,.06);margin-bottom:16px;}
    thead{background:#f3f4f6;} th,td{padding:12px 14px;text-align:left;} tbody tr{border-top:1px solid #f3f4f6;}
    .chip{display:inline-block;font-size:12px;padding:2px 8px;background:var(--chip);border-radius:999px;color:#374151;}
    .pct{padding:2px 8px;border-radius:8px;font-size:12px;}
    .pct.ok{background:#dcfce7;color:#166534;} .pct.bad{background:#fee2e2;color:#991b1b;}
    .sub{color:var(--muted);font-size:12px;margin:0;}
  </style>
</head>
<body>
<div class="wrap">
  <div class="hdr">
    <div>
      <h1 style="margin:0;font-size:22px;font-weight:600">DEX Arbitrage Monitor</h1>
      <p class="sub" id="mode"></p>
    </div>
    <div id="state" class="state">live</div>
  </div>
  <table>
    <thead>
      <tr>
        <th>Pair</th><th>Buy on</th><th>Sell on</th>
        <th>Buy px</th><th>Sell px</th><th>Amount</th>
        <th>Net profit</th><th style="text-align:right">Seen</th>
      </tr>
    </thead>
    <tbody id="opps"></tbody>
  </table>
  <table>
    <thead>
      <tr>
        <th>Trades</th><th>OK</th><th>Failed</th><th>Simulated</th>
        <th>Profit (base)</th><th>Profit (quote)</th><th>Avg %</th>
      </tr>
    </thead>
    <tbody id="stats"></tbody>
  </table>
  <p class="sub">Net profit is after venue fees, slippage allowance and gas.</p>
</div>
<script>
  var token = new URLSearchParams(location.search).get('token') || '';
  function api(path){ return fetch(path + (token ? '?token=' + token : ''), {cache:'no-store'}); }
  function num(x, d){ return (x==null||isNaN(x)) ? '—' : Number(x).toLocaleString(undefined,{maximumFractionDigits: d==null?6:d}); }
  function pct(x){ return (x==null||isNaN(x)) ? '—' : (Number(x).toFixed(3)+'%'); }
  function oppRow(o){
    return '<tr>'
      + '<td><strong>' + o.pair + '</strong></td>'
      + '<td><span class="chip">' + o.from_venue + '</span></td>'
      + '<td><span class="chip">' + o.to_venue + '</span></td>'
      + '<td>' + num(o.buy_price) + '</td>'
      + '<td>' + num(o.sell_price) + '</td>'
      + '<td>' + num(o.trade_amount) + '</td>'
      + '<td><span class="pct ' + (o.net_profit_percent > 0 ? 'ok' : 'bad') + '">' + pct(o.net_profit_percent) + '</span></td>'
      + '<td style="text-align:right;color:#6B7280;font-size:12px">' + new Date(o.detected_at).toLocaleTimeString() + '</td>'
      + '</tr>';
  }
  function statsRow(m){
    return '<tr>'
      + '<td>' + m.total_trades + '</td>'
      + '<td>' + m.successful_trades + '</td>'
      + '<td>' + m.failed_trades + '</td>'
      + '<td>' + m.simulated_trades + '</td>'
      + '<td>' + num(m.total_profit_base) + '</td>'
      + '<td>' + num(m.total_profit_quote, 2) + '</td>'
      + '<td>' + pct(m.average_profit_percent) + '</td>'
      + '</tr>';
  }
  async function tick(){
    try{
      var st = await (await api('/api/status')).json();
      document.getElementById('mode').textContent =
        (st.simulation_mode ? 'simulation' : 'live') + ' · ' + st.status + ' · failures: ' + st.consecutive_failures;
      var opps = await (await api('/api/opportunities')).json();
      document.getElementById('opps').innerHTML = (opps.opportunities||[]).map(oppRow).join('');
      var m = await (await api('/api/metrics')).json();
      document.getElementById('stats').innerHTML = statsRow(m);
      var el = document.getElementById('state');
      el.textContent = st.status; el.className = 'state' + (st.status === 'running' ? '' : ' down');
    }catch(e){
      var el = document.getElementById('state');
      el.textContent = 'offline'; el.className = 'state down';
    }
  }
  tick(); setInterval(tick, 1000);
</script>
</body>
</html>`
