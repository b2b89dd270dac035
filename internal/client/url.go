package client

import (
	"net/url"
	"strings"
)

// AbsoluteURL resolves pathOrURL against base. Absolute URLs are returned
// unchanged and an empty input returns "".
func AbsoluteURL(base, pathOrURL string) string {
	if pathOrURL == "" {
		return ""
	}

	if u, err := url.Parse(pathOrURL); err == nil && u.IsAbs() {
		return u.String()
	}

	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(pathOrURL, "/")
}
