package normalize

import (
	"regexp"
	"strings"

	"github.com/JakeFAU/apod-archiver/internal/apod"
)

const excerptRadius = 24

var (
	leadingSpace      = regexp.MustCompile(`^\s`)
	trailingSpace     = regexp.MustCompile(`\s$`)
	colonAfterStyle   = regexp.MustCompile(`</[bi]>\s*:`)
	newlineFlood      = regexp.MustCompile(`\n{3,}`)
	doubleSpace       = regexp.MustCompile(` {2,}`)
	upperCaseTag      = regexp.MustCompile(`</?[A-Z]`)
	linkOpenerLike    = regexp.MustCompile(`(?:<a\s|<ahref)`)
	wellFormedOpener  = regexp.MustCompile(`<a href="\S+?">`)
	wellFormedAt      = regexp.MustCompile(`^<a href="\S+?">`)
	tagLike           = regexp.MustCompile(`<\S+?>`)
	wellFormedClosing = regexp.MustCompile(`^</[a-z]+>$`)
)

type textCheck struct {
	reason string
	find   func(string) []int
}

func matchCheck(reason string, re *regexp.Regexp) textCheck {
	return textCheck{reason: reason, find: re.FindStringIndex}
}

var textChecks = []textCheck{
	matchCheck("leading whitespace", leadingSpace),
	matchCheck("trailing whitespace", trailingSpace),
	matchCheck("colon after closing bold or italic tag", colonAfterStyle),
	matchCheck("more than two consecutive newlines", newlineFlood),
	matchCheck("more than one consecutive space", doubleSpace),
	matchCheck("upper case tag", upperCaseTag),
	{reason: "link opening tag with bad format", find: findMalformedOpener},
	{reason: "closing tag with bad format", find: findMalformedClosing},
}

// CheckText validates normalized text. The first failed check is reported as
// an *apod.HTMLFixingError carrying an excerpt around the offending spot.
func CheckText(text string) error {
	for _, c := range textChecks {
		if loc := c.find(text); loc != nil {
			return &apod.HTMLFixingError{Reason: c.reason, Fragment: excerpt(text, loc)}
		}
	}
	return nil
}

func findMalformedOpener(text string) []int {
	openers := linkOpenerLike.FindAllStringIndex(text, -1)
	if len(openers) == len(wellFormedOpener.FindAllStringIndex(text, -1)) {
		return nil
	}
	for _, o := range openers {
		if !wellFormedAt.MatchString(text[o[0]:]) {
			return o
		}
	}
	return []int{0, len(text)}
}

func findMalformedClosing(text string) []int {
	for _, loc := range tagLike.FindAllStringIndex(text, -1) {
		tag := text[loc[0]:loc[1]]
		if strings.Contains(tag, "/") && !wellFormedClosing.MatchString(tag) {
			return loc
		}
	}
	return nil
}

func excerpt(text string, loc []int) string {
	start := max(loc[0]-excerptRadius, 0)
	end := min(loc[1]+excerptRadius, len(text))
	return strings.ToValidUTF8(text[start:end], "")
}
