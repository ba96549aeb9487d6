// Package validation provides the input checks shared by configuration
// loading, external tool invocation and the development server: shell
// metacharacters in tool arguments, path traversal in configured
// locations, and websocket origins.
package validation

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

var (
	argumentChars = []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\\", "\"", "'", "\n", "\r"}
	pathChars     = []string{";", "&", "|", "$", "`", "<", ">", "\"", "'", "\n", "\r"}
	hostChars     = []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\", "/"}
)

// ValidateArgument validates a command line argument to prevent injection attacks.
// Arguments are never passed through a shell, but a metacharacter in a tool
// command line almost always means it was written for one.
func ValidateArgument(arg string) error {
	if char, ok := containsAny(arg, argumentChars); ok {
		return fmt.Errorf("contains dangerous character: %q", char)
	}

	return nil
}

// ValidatePath validates a configured location. Relative paths must stay
// inside the project directory.
func ValidatePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("path cannot be empty")
	}

	cleanPath := filepath.Clean(path)
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path escapes the project directory: %s", path)
	}

	if char, ok := containsAny(path, pathChars); ok {
		return fmt.Errorf("path contains dangerous character: %q", char)
	}

	return nil
}

// ValidateHost validates a listen host name or address.
func ValidateHost(host string) error {
	if char, ok := containsAny(host, hostChars); ok {
		return fmt.Errorf("host contains dangerous character: %q", char)
	}

	return nil
}

// ValidateOrigin validates WebSocket origin for CSRF protection. An origin
// passes when its host (with or without port) is in allowedHosts.
func ValidateOrigin(origin string, allowedHosts []string) error {
	if origin == "" {
		return fmt.Errorf("origin header is required")
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return fmt.Errorf("invalid origin format: %w", err)
	}

	if originURL.Scheme != "http" && originURL.Scheme != "https" {
		return fmt.Errorf("invalid origin scheme '%s': only http and https are allowed", originURL.Scheme)
	}

	for _, allowed := range allowedHosts {
		if originURL.Host == allowed || originURL.Hostname() == allowed {
			return nil
		}
	}

	return fmt.Errorf("origin '%s' is not in allowed origins list", origin)
}

func containsAny(s string, chars []string) (string, bool) {
	for _, char := range chars {
		if strings.Contains(s, char) {
			return char, true
		}
	}

	return "", false
}
