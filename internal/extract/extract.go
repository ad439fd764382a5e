// Package extract slices the title, description, credit block and image
// source out of a full archive page.
package extract

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/JakeFAU/apod-archiver/internal/apod"
	"github.com/JakeFAU/apod-archiver/internal/normalize"
	"github.com/JakeFAU/apod-archiver/internal/translate"
)

var (
	explanation = regexp.MustCompile(
		`(?i)Explanation:\s*(?:</[^>]+>\s*)?([\s\S]+?)\s*<p(?:\s[^>]*)?>`,
	)

	// Tried in order; the first pattern that matches wins.
	imageSources = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<img\b[^>]*?\ssrc\s*=\s*["']?([^"'\s>]+)`),
		regexp.MustCompile(`(?i)<iframe\b[^>]*?\ssrc\s*=\s*["']?([^"'\s>]+)`),
		regexp.MustCompile(`(?i)<object\b[^>]*?\sdata\s*=\s*["']?([^"'\s>]+)`),
		regexp.MustCompile(`(?i)<param\s+name\s*=\s*["']?movie["']?\s+value\s*=\s*["']?([^"'\s>]+)`),
	}

	centerBlock   = regexp.MustCompile(`(?i)<center>[\s\S]+?</center>`)
	centerContent = regexp.MustCompile(`(?i)<center>\s*(\S[\s\S]+?\S)\s*</center>`)
	firstTagPair  = regexp.MustCompile(`<[^>]+?>\s*\S[\s\S]+?\S\s*</[^>]+?>`)
	afterTagPair  = regexp.MustCompile(`(?i)<[^>]+?>[\s\S]+?</[^>]+?>\s*(?:<br\s*/?>)?\s*([\s\S]+)`)

	spaceRun = regexp.MustCompile(` {2,}`)
)

// Entry extracts every field of the page published on date.
func Entry(date time.Time, page string) (apod.Entry, error) {
	img, err := ImageSource(page)
	if err != nil {
		return apod.Entry{}, err
	}
	title, err := Title(page)
	if err != nil {
		return apod.Entry{}, err
	}
	description, err := Description(page)
	if err != nil {
		return apod.Entry{}, err
	}
	meta, err := Meta(page)
	if err != nil {
		return apod.Entry{}, err
	}
	return apod.Entry{
		Date:        apod.Truncate(date),
		ImageURL:    img,
		Title:       title,
		Description: description,
		Meta:        meta,
	}, nil
}

// Description returns the styled explanation text.
func Description(page string) (string, error) {
	m := explanation.FindStringSubmatch(page)
	if m == nil {
		return "", apod.ParsingError("explanation")
	}
	return styled(m[1])
}

// ImageSource returns the normalized URL of the page's main media element.
func ImageSource(page string) (string, error) {
	for _, re := range imageSources {
		if m := re.FindStringSubmatch(page); m != nil {
			return normalize.NormalizeURL(m[1]), nil
		}
	}
	return "", apod.ParsingError("image source")
}

// Title returns the plain-text title.
func Title(page string) (string, error) {
	block, err := titleMetaBlock(page)
	if err != nil {
		return "", err
	}
	raw := firstTagPair.FindString(block)
	if raw == "" {
		return "", apod.ParsingError("title")
	}
	return plain(raw)
}

// Meta returns the credit and copyright text following the title.
func Meta(page string) (string, error) {
	block, err := titleMetaBlock(page)
	if err != nil {
		return "", err
	}
	m := afterTagPair.FindStringSubmatch(block)
	if m == nil {
		return "", apod.ParsingError("meta block")
	}
	return plain(m[1])
}

// titleMetaBlock returns the inner content of the second centered region.
// The first one holds the image and page chrome.
func titleMetaBlock(page string) (string, error) {
	blocks := centerBlock.FindAllString(page, 2)
	if len(blocks) < 2 {
		return "", apod.ParsingError("title block")
	}
	m := centerContent.FindStringSubmatch(blocks[1])
	if m == nil {
		return "", apod.ParsingError("title block content")
	}
	return m[1], nil
}

func styled(raw string) (string, error) {
	normalized, err := normalize.NormalizeText(raw)
	if err != nil {
		return "", fmt.Errorf("normalize: %w", err)
	}
	text, err := translate.ToStyledText(normalized)
	if err != nil {
		return "", fmt.Errorf("translate: %w", err)
	}
	return text, nil
}

// plain drops emphasis markers; titles and credits are never styled.
func plain(raw string) (string, error) {
	text, err := styled(raw)
	if err != nil {
		return "", err
	}
	text = spaceRun.ReplaceAllString(strings.ReplaceAll(text, "*", ""), " ")
	return strings.TrimSpace(text), nil
}
