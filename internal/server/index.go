package server

import "net/http"

const indexPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Ghibli Stylizer</title>
<style>
body { font-family: sans-serif; max-width: 720px; margin: 2rem auto; color: #2d3a4a; }
img { max-width: 100%; margin-top: 1rem; }
#status { color: #6b7a8c; min-height: 1.2em; }
.row { display: flex; gap: 1rem; }
.row div { flex: 1; }
</style>
</head>
<body>
<h1>Ghibli Stylizer</h1>
<form id="upload">
<input type="file" name="file" accept=".png,.jpg,.jpeg" required>
<button type="submit">Transform</button>
</form>
<p id="status"></p>
<div class="row">
<div><h3>Original</h3><img id="original" alt=""></div>
<div><h3>Transformed</h3><img id="transformed" alt=""></div>
</div>
<script>
const status = document.getElementById("status");
const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/api/events");
ws.onmessage = (msg) => {
  const ev = JSON.parse(msg.data);
  if (ev.type === "transform_completed") {
    status.textContent = "Done (" + ev.level + ", " + ev.duration_ms + " ms)";
  } else if (ev.type === "transform_failed") {
    status.textContent = "Failed: " + ev.error;
  } else {
    status.textContent = "Processing " + ev.name + "...";
  }
};
document.getElementById("upload").addEventListener("submit", async (e) => {
  e.preventDefault();
  status.textContent = "Uploading...";
  const resp = await fetch("/transform", { method: "POST", body: new FormData(e.target) });
  const data = await resp.json();
  if (!resp.ok) {
    status.textContent = data.error;
    return;
  }
  document.getElementById("original").src = data.original;
  document.getElementById("transformed").src = data.transformed;
});
</script>
</body>
</html>
`

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(indexPage))
}
