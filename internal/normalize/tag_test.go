package normalize

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/apod-archiver/internal/apod"
)

func TestClassifyAndFixKeepsCanonicalTags(t *testing.T) {
	t.Parallel()

	for _, tag := range []string{
		"<i>", "</i>", "<b>", "</b>", "<br>",
		"<center>", "</center>", "<p>", "</p>",
		"<sup>", "</sup>", "<sub>", "</sub>",
		`<a href="www.google.de">`,
		`<a href="https://apod.nasa.gov/apod/image/2401/moon.jpg">`,
	} {
		got, err := ClassifyAndFix(tag)
		require.NoError(t, err, tag)
		assert.Equal(t, tag, got)
	}
}

func TestClassifyAndFixRepairsLinks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{`<a href=www.google.de>`, `<a href="www.google.de">`},
		{`<ahref="www.google.de" id="x">`, `<a href="www.google.de">`},
		{`<a HREF="www.google.de">`, `<a href="www.google.de">`},
		{`<A href="www.google.de">`, `<a href="www.google.de">`},
		{`<a hrf="www.google.de">`, `<a href="www.google.de">`},
		{`<a hef="www.google.de">`, `<a href="www.google.de">`},
		{`<a ref="www.google.de">`, `<a href="www.google.de">`},
		{`<a herf="www.google.de">`, `<a href="www.google.de">`},
		{`<a hreff="www.google.de">`, `<a href="www.google.de">`},
		{`<a h ref="www.google.de">`, `<a href="www.google.de">`},
		{`<ah ref="www.google.de">`, `<a href="www.google.de">`},
		{`<la href="www.google.de">`, `<a href="www.google.de">`},
		{`<a href"http://www.google.de">`, `<a href="http://www.google.de">`},
		{`<a href = "www.google.de">`, `<a href="www.google.de">`},
		{`<a href="www.google.de" >`, `<a href="www.google.de">`},
		{`<a href="www.google.de>">`, `<a href="www.google.de">`},
		{`<a href=www.google.de">`, `<a href="www.google.de">`},
		{`<a href=//www.google.de>`, `<a href="https://www.google.de">`},
		{`<a href=ap950616.html>`, `<a href="https://apod.nasa.gov/apod/ap950616.html">`},
		{
			`<a href="image/1905/TotnBefore_Dai_3000.jpg"</a>`,
			`<a href="https://apod.nasa.gov/apod/image/1905/TotnBefore_Dai_3000.jpg">`,
		},
		{
			`<href="http://cosmicdiary.org/fpatat/2009/01/19/ x-shooter-goes-on-sky/">`,
			`<a href="http://cosmicdiary.org/fpatat/2009/01/19/x-shooter-goes-on-sky/">`,
		},
		{`<a href="">`, ``},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ClassifyAndFix(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectTag(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Kind
	}{
		{"<br>", Break},
		{"</br>", Break},
		{"<br/>", Break},
		{"<br />", Break},
		{"<BR>", Break},
		{"<I>", OpenItalic},
		{"<I/>", CloseItalic},
		{"</I>", CloseItalic},
		{"<B>", OpenBold},
		{"<b/>", CloseBold},
		{"</B>", CloseBold},
		{"<A>", CloseLink},
		{"<a/>", CloseLink},
		{"</A>", CloseLink},
		{"<?=/a>", CloseLink},
		{"<CENTER>", OpenCenter},
		{"<center/>", CloseCenter},
		{"<P>", OpenParagraph},
		{"</P>", CloseParagraph},
		{"<SUP>", OpenSup},
		{"<sup/>", CloseSup},
		{"<SUB>", OpenSub},
		{"</SUB>", CloseSub},
		{`<a href="www.google.de">`, OpenLink},
	}

	for _, tt := range tests {
		got, err := DetectTag(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got.Kind, tt.in)
	}
}

func TestDetectTagUnrecognized(t *testing.T) {
	t.Parallel()

	_, err := DetectTag(`<img src="x.jpg">`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apod.ErrHTMLFixing))

	var tagErr *apod.UnrecognizedTagError
	require.ErrorAs(t, err, &tagErr)
	assert.Equal(t, `<img src="x.jpg">`, tagErr.Tag)
}

func TestCanonicalCoversEveryKind(t *testing.T) {
	t.Parallel()

	for k := Break; k <= CloseSub; k++ {
		tag := Tag{Kind: k, URL: "https://example.com"}
		canonical := tag.Canonical()
		require.NotEmpty(t, canonical, k.String())
		assert.True(t, IsCanonical(canonical), canonical)
	}
	assert.Empty(t, Tag{Kind: OpenLink}.Canonical())
}
