package server

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInjectReloadScript(t *testing.T) {
	tag := string(reloadTag)

	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "before closing body",
			doc:  "<html><body><p>x</p></body></html>",
			want: "<html><body><p>x</p>" + tag + "</body></html>",
		},
		{
			name: "uppercase body",
			doc:  "<HTML><BODY>x</BODY></HTML>",
			want: "<HTML><BODY>x" + tag + "</BODY></HTML>",
		},
		{
			name: "last body wins",
			doc:  "<body><pre>&lt;/body&gt;</pre><script>var s = '</body>';</script></body>",
			want: "<body><pre>&lt;/body&gt;</pre><script>var s = '</body>';</script>" + tag + "</body>",
		},
		{
			name: "fragment without body",
			doc:  "<p>partial</p>",
			want: "<p>partial</p>" + tag,
		},
		{
			name: "already injected",
			doc:  "<body>" + tag + "</body>",
			want: "<body>" + tag + "</body>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := string(InjectReloadScript([]byte(tt.doc)))
			assert.Equal(t, tt.want, got)
			assert.Equal(t, 1, strings.Count(got, ReloadScriptPath))
		})
	}
}
