// Package translate turns normalized markup into styled text: emphasis
// markers and bracket-paren links, with no raw tags left behind.
package translate

import (
	"html"
	"regexp"
	"strings"

	"github.com/JakeFAU/apod-archiver/internal/apod"
)

const excerptRadius = 24

var (
	lineBreak     = regexp.MustCompile(` ?<br> ?`)
	paragraphTag  = regexp.MustCompile(`\s*</?p>\s*`)
	unwrappedTags = regexp.MustCompile(`</?(?:center|sup|sub)>`)

	italicSpan = regexp.MustCompile(`<i>([\s\S]*?)</i>`)
	boldSpan   = regexp.MustCompile(`<b>([\s\S]*?)</b>`)
	linkSpan   = regexp.MustCompile(`<a href="([^"]*)">([\s\S]*?)</a>`)

	// Markers left over once their partner was dropped or never existed.
	orphanMarker = regexp.MustCompile(`\s?(?:</a>|</b>|</i>|<b>|<i>)\s?`)

	entity = regexp.MustCompile(`&(?:#[0-9]+|#[xX][0-9a-fA-F]+|[a-zA-Z][a-zA-Z0-9]*);`)

	spaceRun      = regexp.MustCompile(`[ \t]{2,}`)
	spacedNewline = regexp.MustCompile(`[ \t]*\n[ \t]*`)
	newlineFlood  = regexp.MustCompile(`\n{3,}`)
)

type styledCheck struct {
	reason string
	re     *regexp.Regexp
}

var styledChecks = []styledCheck{
	{"angle bracket left in text", regexp.MustCompile(`[<>]`)},
	{"leading whitespace", regexp.MustCompile(`^\s`)},
	{"trailing whitespace", regexp.MustCompile(`\s$`)},
	{"more than one consecutive space", regexp.MustCompile(` {2,}`)},
	{"more than two consecutive newlines", regexp.MustCompile(`\n{3,}`)},
	{"asterisk followed by colon", regexp.MustCompile(`\*:`)},
}

// ToStyledText translates normalized markup. A result that still breaks one
// of the styled text rules is reported as *apod.HTMLFixingError.
func ToStyledText(normalized string) (string, error) {
	text := lineBreak.ReplaceAllString(normalized, "")
	text = paragraphTag.ReplaceAllString(text, "\n\n")
	text = unwrappedTags.ReplaceAllString(text, "")

	text = wrapSpans(text, italicSpan, "*")
	text = wrapSpans(text, boldSpan, "**")
	text = linkSpan.ReplaceAllStringFunc(text, func(m string) string {
		sub := linkSpan.FindStringSubmatch(m)
		if strings.TrimSpace(sub[2]) == "" {
			return ""
		}
		return "[" + sub[2] + "](" + sub[1] + ")"
	})
	text = orphanMarker.ReplaceAllStringFunc(text, func(m string) string {
		if strings.ContainsAny(m, " \t\n") {
			return " "
		}
		return ""
	})
	text = entity.ReplaceAllStringFunc(text, decodeEntity)

	text = spaceRun.ReplaceAllString(text, " ")
	text = spacedNewline.ReplaceAllString(text, "\n")
	text = newlineFlood.ReplaceAllString(text, "\n\n")
	text = strings.TrimSpace(text)

	for _, c := range styledChecks {
		if loc := c.re.FindStringIndex(text); loc != nil {
			return "", &apod.HTMLFixingError{Reason: c.reason, Fragment: excerpt(text, loc)}
		}
	}
	return text, nil
}

func wrapSpans(text string, span *regexp.Regexp, marker string) string {
	return span.ReplaceAllStringFunc(text, func(m string) string {
		inner := span.FindStringSubmatch(m)[1]
		if strings.TrimSpace(inner) == "" {
			return inner
		}
		return marker + inner + marker
	})
}

// decodeEntity resolves a character reference unless it stands for markup.
func decodeEntity(ref string) string {
	decoded := html.UnescapeString(ref)
	switch {
	case strings.ContainsAny(decoded, "<>"):
		return ref
	case decoded == "\u00a0":
		return " "
	default:
		return decoded
	}
}

func excerpt(text string, loc []int) string {
	start := max(loc[0]-excerptRadius, 0)
	end := min(loc[1]+excerptRadius, len(text))
	return strings.ToValidUTF8(text[start:end], "")
}
