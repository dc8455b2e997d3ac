package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/mveplus/onair-led-sign-firmware/internal/device"
)

var pageFuncs = template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
}

var (
	setupTmpl  = template.Must(template.New("setup").Parse(setupHTML))
	statusTmpl = template.Must(template.New("status").Funcs(pageFuncs).Parse(statusHTML))
	updateTmpl = template.Must(template.New("update").Parse(updateHTML))
)

const setupHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.APSSID}} setup</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
label { display: block; margin: 0.8em 0; }
input[type=text], input[type=password], input[type=number] { width: 100%; box-sizing: border-box; padding: 4px; font-family: inherit; }
input[type=checkbox] { width: auto; }
button { padding: 6px 14px; font-family: inherit; cursor: pointer; }
#networks { list-style: none; padding: 0; }
#networks li { margin: 2px 0; }
.hint { color: #888; }
.error { color: red; }
</style>
</head>
<body>
<h1>ON AIR sign setup</h1>
<p>This sign is broadcasting the setup network <b>{{.APSSID}}</b>. Tell it
which Wi-Fi network to join and it will restart into it.</p>

<p><button type="button" id="scan">Scan for networks</button>
<span class="hint" id="scanstate">{{if ge .ScanCount 0}}last scan found {{.ScanCount}} networks{{end}}</span></p>
<ul id="networks"></ul>

<form id="setup">
<label>Network name
<input type="text" name="ssid" maxlength="32" value="{{.Config.SSID}}" required></label>
<label>Network password
<input type="password" name="pass" maxlength="63" placeholder="empty for open networks"></label>
<label>Hostname
<input type="text" name="host" maxlength="32" value="{{.Config.Hostname}}" placeholder="optional"></label>
<label>Output pin
<input type="number" name="out" min="0" max="63" value="{{.Config.OutputPin}}"></label>
<label><input type="checkbox" name="usebl" {{if .Config.UseBuiltinLED}}checked{{end}}> drive the builtin LED instead</label>
<label><input type="checkbox" name="ledah" {{if .Config.LEDActiveHigh}}checked{{end}}> output is active-high</label>
<label>Admin user
<input type="text" name="auth_user" maxlength="32" value="{{.Config.AdminUser}}" placeholder="optional"></label>
<label>Admin password
<input type="password" name="auth_pass" maxlength="64" placeholder="optional"></label>
<label>Setup network password
<input type="password" name="ap_pass" maxlength="63" placeholder="optional, 8-63 characters"></label>
<p><button type="submit">Save and restart</button></p>
</form>
<p id="result"></p>

<script>
var scanState = document.getElementById("scanstate");

function pollScan() {
  fetch("/scan").then(function(r) { return r.json(); }).then(function(data) {
    if (data.scanning) {
      scanState.textContent = "scanning...";
      setTimeout(pollScan, 1000);
      return;
    }
    var names = data.ssids || [];
    scanState.textContent = "found " + names.length + " networks";
    var ul = document.getElementById("networks");
    ul.innerHTML = "";
    names.forEach(function(name) {
      var li = document.createElement("li");
      var a = document.createElement("a");
      a.href = "#";
      a.textContent = name;
      a.addEventListener("click", function(e) {
        e.preventDefault();
        document.querySelector("input[name=ssid]").value = name;
      });
      li.appendChild(a);
      ul.appendChild(li);
    });
  });
}
document.getElementById("scan").addEventListener("click", pollScan);

document.getElementById("setup").addEventListener("submit", function(e) {
  e.preventDefault();
  var f = new FormData(e.target);
  var body = {
    ssid: f.get("ssid"),
    pass: f.get("pass"),
    host: f.get("host"),
    out: parseInt(f.get("out"), 10),
    usebl: f.get("usebl") === "on",
    ledah: f.get("ledah") === "on",
    auth_user: f.get("auth_user"),
    auth_pass: f.get("auth_pass"),
    ap_pass: f.get("ap_pass")
  };
  fetch("/save", {
    method: "POST",
    headers: { "Content-Type": "application/json" },
    body: JSON.stringify(body)
  }).then(function(r) { return r.json(); }).then(function(data) {
    var result = document.getElementById("result");
    if (data.ok) {
      result.className = "hint";
      result.textContent = "Saved. The sign is restarting and will join " + body.ssid + ".";
    } else {
      result.className = "error";
      result.textContent = "Error: " + data.error;
    }
  });
});
</script>
</body>
</html>
`

const statusHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Hostname}}</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: #c0392b; font-weight: bold; }
.off { color: #888; }
.breathing { color: orange; font-weight: bold; }
button { padding: 6px 14px; margin-right: 6px; font-family: inherit; cursor: pointer; }
</style>
</head>
<body>
<h1>ON AIR <span class="{{.Snap.Actuator.Mode}}">{{.Snap.Actuator.Mode}}</span></h1>

<h2>Sign</h2>
<table>
<tr><th>Mode</th><td class="{{.Snap.Actuator.Mode}}">{{.Snap.Actuator.Mode}}</td></tr>
<tr><th>Level</th><td>{{.Snap.Actuator.Level}}%</td></tr>
<tr><th>Wave</th><td>{{.Snap.Actuator.PeriodMs}}ms, {{.Snap.Actuator.MinPct}}% to {{.Snap.Actuator.MaxPct}}%</td></tr>
</table>

<p>
<button data-mode="on">on</button>
<button data-mode="breathing">breathing</button>
<button data-mode="off">off</button>
</p>

<h2>Network</h2>
<table>
<tr><th>SSID</th><td>{{.Snap.Network.SSID}}</td></tr>
<tr><th>IP</th><td>{{.Snap.Network.IP}}</td></tr>
{{if .Snap.Network.RSSI}}<tr><th>Signal</th><td>{{.Snap.Network.RSSI}} dBm</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Hostname</th><td>{{.Hostname}}</td></tr>
<tr><th>Version</th><td>{{.Snap.Version}}</td></tr>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
</table>

<p><a href="/api/status">JSON</a> | <a href="/update">firmware update</a></p>

<script>
document.querySelectorAll("button[data-mode]").forEach(function(b) {
  b.addEventListener("click", function() {
    fetch("/api/mode?mode=" + b.dataset.mode).then(function() { location.reload(); });
  });
});
</script>
</body>
</html>
`

const updateHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Firmware update</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
button { padding: 6px 14px; font-family: inherit; cursor: pointer; }
</style>
</head>
<body>
<h1>Firmware update</h1>
<p>Upload a new firmware image. The sign restarts onto it once the upload
is committed.</p>
<form method="POST" action="/update" enctype="multipart/form-data">
<p><input type="file" name="image" required></p>
<p><button type="submit">Upload and restart</button></p>
</form>
<p><a href="/">back</a></p>
</body>
</html>
`

type setupData struct {
	APSSID    string
	Config    device.Config
	ScanCount int
}

func renderSetup(w io.Writer, data setupData) {
	setupTmpl.Execute(w, data)
}

func renderStatus(w io.Writer, snap device.Snapshot, hostname string) {
	// Snapshot has an Uptime() method but the template needs a Duration field.
	data := struct {
		Snap     device.Snapshot
		Hostname string
		Uptime   time.Duration
	}{
		Snap:     snap,
		Hostname: hostname,
		Uptime:   snap.Uptime(),
	}
	statusTmpl.Execute(w, data)
}

func renderUpdate(w io.Writer) {
	updateTmpl.Execute(w, nil)
}
