package server

import (
	"bytes"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// ReloadScriptPath serves the live-reload client.
const ReloadScriptPath = "/_sitepipe/reload.js"

var reloadTag = []byte(`<script src="` + ReloadScriptPath + `"></script>`)

// InjectReloadScript inserts the reload client tag before the last </body>
// of an HTML document, or appends it when there is none. A document that
// already references the client is returned unchanged.
func InjectReloadScript(doc []byte) []byte {
	if bytes.Contains(doc, []byte(ReloadScriptPath)) {
		return doc
	}

	at := -1
	offset := 0
	z := html.NewTokenizer(bytes.NewReader(doc))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		raw := len(z.Raw())
		if tt == html.EndTagToken {
			if name, _ := z.TagName(); strings.EqualFold(string(name), "body") {
				at = offset
			}
		}
		offset += raw
	}
	if z.Err() != io.EOF || at < 0 {
		return append(append([]byte{}, doc...), reloadTag...)
	}

	out := make([]byte, 0, len(doc)+len(reloadTag))
	out = append(out, doc[:at]...)
	out = append(out, reloadTag...)
	out = append(out, doc[at:]...)
	return out
}

// reloadScript connects to the hub and reacts to its messages. CSS updates
// re-fetch stylesheets in place; everything else reloads the page.
const reloadScript = `(function () {
  var url = (location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/_sitepipe/ws";
  function refreshStyles() {
    var links = document.querySelectorAll('link[rel="stylesheet"]');
    for (var i = 0; i < links.length; i++) {
      var href = links[i].href.replace(/[?&]_sitepipe=\d+/, "");
      links[i].href = href + (href.indexOf("?") < 0 ? "?" : "&") + "_sitepipe=" + Date.now();
    }
  }
  function connect() {
    var ws = new WebSocket(url);
    ws.onmessage = function (event) {
      var msg = JSON.parse(event.data);
      if (msg.type === "css") {
        refreshStyles();
      } else {
        location.reload();
      }
    };
    ws.onclose = function () {
      setTimeout(connect, 1000);
    };
  }
  connect();
})();
`
