package normalize

import (
	"regexp"
	"strings"

	"github.com/JakeFAU/apod-archiver/internal/apod"
)

var (
	urlStripper = strings.NewReplacer("\n", "", "\r", "", "\t", "", " ", "", "<", "", ">", "")

	mailtoFixes = strings.NewReplacer(
		"@at@", "@",
		"[at]", "@",
		".dot.", ".",
		"[dot]", ".",
		".d.o.t.", ".",
	)

	schemePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.\-]*://`)
	hostPattern   = regexp.MustCompile(
		`^(?:(?:[a-zA-Z0-9][a-zA-Z0-9\-]*[a-zA-Z0-9]|[a-zA-Z0-9])\.)+([a-zA-Z]{2,})`,
	)

	// Final labels that look like a host but are really file extensions.
	pathExtensions = map[string]struct{}{
		"html": {}, "htm": {}, "jpg": {}, "jpeg": {}, "png": {},
		"gif": {}, "swf": {}, "asp": {}, "php": {},
	}
)

// NormalizeURL canonicalizes a link or media URL lifted out of page markup.
// Relative values are resolved against the archive base. It never fails.
func NormalizeURL(raw string) string {
	url := urlStripper.Replace(raw)
	switch {
	case strings.HasPrefix(url, "mailto:"):
		for {
			fixed := mailtoFixes.Replace(url)
			if fixed == url {
				return url
			}
			url = fixed
		}
	case strings.HasPrefix(url, "//"):
		return "https:" + url
	case isAbsolute(url):
		return url
	default:
		return apod.BaseURL + url
	}
}

func isAbsolute(url string) bool {
	if schemePattern.MatchString(url) {
		return true
	}
	m := hostPattern.FindStringSubmatch(url)
	if m == nil {
		return false
	}
	_, ext := pathExtensions[strings.ToLower(m[1])]
	return !ext
}
