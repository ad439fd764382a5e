package normalize

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/JakeFAU/apod-archiver/internal/apod"
)

// Kind enumerates the canonical tag vocabulary.
type Kind int

// Tag kinds. The set is closed; Canonical switches over all of them.
const (
	Break Kind = iota
	OpenBold
	CloseBold
	OpenItalic
	CloseItalic
	OpenLink
	CloseLink
	OpenCenter
	CloseCenter
	OpenParagraph
	CloseParagraph
	OpenSup
	CloseSup
	OpenSub
	CloseSub
)

func (k Kind) String() string {
	switch k {
	case Break:
		return "break"
	case OpenBold:
		return "open-bold"
	case CloseBold:
		return "close-bold"
	case OpenItalic:
		return "open-italic"
	case CloseItalic:
		return "close-italic"
	case OpenLink:
		return "open-link"
	case CloseLink:
		return "close-link"
	case OpenCenter:
		return "open-center"
	case CloseCenter:
		return "close-center"
	case OpenParagraph:
		return "open-paragraph"
	case CloseParagraph:
		return "close-paragraph"
	case OpenSup:
		return "open-sup"
	case CloseSup:
		return "close-sup"
	case OpenSub:
		return "open-sub"
	case CloseSub:
		return "close-sub"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Tag is a classified token. URL is only meaningful for OpenLink and holds
// the normalized target, or "" when none could be recovered.
type Tag struct {
	Kind Kind
	URL  string
}

// Canonical renders the tag in its canonical literal form. An OpenLink with
// no URL renders as "" so the token is dropped from the text.
func (t Tag) Canonical() string {
	switch t.Kind {
	case Break:
		return "<br>"
	case OpenBold:
		return "<b>"
	case CloseBold:
		return "</b>"
	case OpenItalic:
		return "<i>"
	case CloseItalic:
		return "</i>"
	case OpenLink:
		if t.URL == "" {
			return ""
		}
		return `<a href="` + t.URL + `">`
	case CloseLink:
		return "</a>"
	case OpenCenter:
		return "<center>"
	case CloseCenter:
		return "</center>"
	case OpenParagraph:
		return "<p>"
	case CloseParagraph:
		return "</p>"
	case OpenSup:
		return "<sup>"
	case CloseSup:
		return "</sup>"
	case OpenSub:
		return "<sub>"
	case CloseSub:
		return "</sub>"
	default:
		return ""
	}
}

var (
	canonicalLiterals = map[string]struct{}{
		"<i>": {}, "</i>": {}, "<b>": {}, "</b>": {}, "<br>": {},
		"<center>": {}, "</center>": {}, "<p>": {}, "</p>": {},
		"<sup>": {}, "</sup>": {}, "<sub>": {}, "</sub>": {},
	}
	canonicalLink = regexp.MustCompile(`^<a href="[^"<>\s]+">$`)

	// Anchor openers seen in the archive: "<a ", "<A ", "<ahref", "<ah ref",
	// "<la href" and the tag name dropped entirely ("<href").
	linkOpener = regexp.MustCompile(`(?i)^<(?:l?a\s|ah\s*ref|h\s*ref)`)

	linkURL = regexp.MustCompile(
		`(?i)<(?:l?a\s*)?` +
			`(?:ref|href|rhef|hre|hef|hrf|h ref|hreff|herf)` +
			`(?:\s*=\s*"|=|")` +
			`([\s\S]*?)` +
			`(?:>$|"[\s\S]*>$|"</a>$)`,
	)

	openNames = map[string]Kind{
		"br": Break, "i": OpenItalic, "b": OpenBold, "a": CloseLink,
		"center": OpenCenter, "p": OpenParagraph, "sup": OpenSup, "sub": OpenSub,
	}
	closeNames = map[string]Kind{
		"br": Break, "i": CloseItalic, "b": CloseBold, "a": CloseLink,
		"center": CloseCenter, "p": CloseParagraph, "sup": CloseSup, "sub": CloseSub,
	}
)

// IsCanonical reports whether raw is already one of the canonical literals.
func IsCanonical(raw string) bool {
	if _, ok := canonicalLiterals[raw]; ok {
		return true
	}
	return canonicalLink.MatchString(raw)
}

// DetectTag classifies a tag-like token. Unknown tag names yield an
// *apod.UnrecognizedTagError naming the raw token.
func DetectTag(raw string) (Tag, error) {
	if linkOpener.MatchString(raw) {
		return Tag{Kind: OpenLink, URL: extractLinkURL(raw)}, nil
	}

	name := strings.ToLower(strings.Map(func(r rune) rune {
		if r <= unicode.MaxASCII && unicode.IsLetter(r) {
			return r
		}
		return -1
	}, raw))

	names := openNames
	if strings.Contains(raw, "/") {
		names = closeNames
	}
	// A bare "<a>" lands on CloseLink through openNames: it is far more often
	// a closing tag missing its slash than an opener missing its href.
	kind, ok := names[name]
	if !ok {
		return Tag{}, &apod.UnrecognizedTagError{Tag: raw}
	}
	return Tag{Kind: kind}, nil
}

// ClassifyAndFix returns raw untouched when it is already canonical and its
// repaired canonical form otherwise. A link opener without a recoverable URL
// is repaired to "".
func ClassifyAndFix(raw string) (string, error) {
	if IsCanonical(raw) {
		return raw, nil
	}
	tag, err := DetectTag(raw)
	if err != nil {
		return "", err
	}
	return tag.Canonical(), nil
}

func extractLinkURL(raw string) string {
	m := linkURL.FindStringSubmatch(raw)
	if m == nil {
		return ""
	}
	url := strings.NewReplacer(`"`, "", "'", "").Replace(m[1])
	if strings.TrimSpace(url) == "" {
		return ""
	}
	return NormalizeURL(url)
}
