package normalize

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxFixupPasses bounds the repeat-until-stable loops. Real pages never nest
// styling deeper than a handful of levels.
const maxFixupPasses = 16

var (
	newlineRun = regexp.MustCompile(`[\r\n]+`)

	// Matches tag-like tokens, including those whose quoted attribute value
	// itself contains ">".
	tagToken = regexp.MustCompile(`<(?:[^"]|".*?")+?"?>`)

	openLinkTag  = regexp.MustCompile(`<a href="[^"]*">`)
	closeLinkTag = "</a>"

	leadingSpanSpace  = regexp.MustCompile(`(<(?:i|b|a href="[^"]*")>)(\s+)(\S)`)
	trailingSpanSpace = regexp.MustCompile(`(\S)(\s+)(</[iba]>)`)
	colonAfterClose   = regexp.MustCompile(`(</[bi]>)\s*:`)

	spaceRun    = regexp.MustCompile(` {2,}`)
	spacedBreak = regexp.MustCompile(` *<br> *`)
)

// NormalizeText repairs a raw markup fragment into canonical form and checks
// the result. Unknown tags fail with *apod.UnrecognizedTagError, violated
// checks with *apod.HTMLFixingError; both match apod.ErrHTMLFixing.
func NormalizeText(raw string) (string, error) {
	text := newlineRun.ReplaceAllString(raw, " ")

	text, err := fixTags(text)
	if err != nil {
		return "", err
	}
	text = closeOpenLinks(text)
	text = untilStable(text, func(s string) string {
		s = leadingSpanSpace.ReplaceAllString(s, "$2$1$3")
		return trailingSpanSpace.ReplaceAllString(s, "$1$3$2")
	})
	text = untilStable(text, func(s string) string {
		return colonAfterClose.ReplaceAllString(s, ":$1")
	})
	text = spaceRun.ReplaceAllString(text, " ")
	text = spacedBreak.ReplaceAllString(text, "<br>")
	text = strings.TrimSpace(text)

	if err := CheckText(text); err != nil {
		return "", err
	}
	return text, nil
}

func fixTags(text string) (string, error) {
	matches := tagToken.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return text, nil
	}
	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, m := range matches {
		b.WriteString(text[last:m[0]])
		fixed, err := ClassifyAndFix(text[m[0]:m[1]])
		if err != nil {
			return "", err
		}
		b.WriteString(fixed)
		last = m[1]
	}
	b.WriteString(text[last:])
	return b.String(), nil
}

// closeOpenLinks synthesizes a "</a>" for every link opener whose span runs
// into the next opener, or the end of text, without being closed. The close
// goes before any trailing whitespace and punctuation of that span.
func closeOpenLinks(text string) string {
	openers := openLinkTag.FindAllStringIndex(text, -1)
	if len(openers) == 0 {
		return text
	}
	var b strings.Builder
	b.Grow(len(text) + len(openers)*len(closeLinkTag))
	b.WriteString(text[:openers[0][0]])
	for i, o := range openers {
		end := len(text)
		if i+1 < len(openers) {
			end = openers[i+1][0]
		}
		b.WriteString(text[o[0]:o[1]])
		span := text[o[1]:end]
		if strings.Contains(span, closeLinkTag) {
			b.WriteString(span)
			continue
		}
		cut := trailingFillerStart(span)
		b.WriteString(span[:cut])
		b.WriteString(closeLinkTag)
		b.WriteString(span[cut:])
	}
	return b.String()
}

// trailingFillerStart returns the offset where the run of trailing
// non-word characters of s begins. Tag brackets end the run so a close is
// never placed inside another tag.
func trailingFillerStart(s string) int {
	i := len(s)
	for i > 0 {
		r, size := utf8.DecodeLastRuneInString(s[:i])
		if r == '>' || r == '<' || r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			break
		}
		i -= size
	}
	return i
}

func untilStable(text string, fix func(string) string) string {
	for range maxFixupPasses {
		next := fix(text)
		if next == text {
			return next
		}
		text = next
	}
	return text
}
