package embed

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf16"

	"github.com/anatolykoptev/go_fxtok/internal/tiktok"
)

const (
	mentionURL = "https://tiktok.com/@"
	hashtagURL = "https://www.tiktok.com/tag/"
)

var (
	mentionRe = regexp.MustCompile(`@([\w']+)`)
	hashtagRe = regexp.MustCompile(`#(\w+)`)
)

// Description renders the post text as HTML: the image-post title in bold,
// then each content block with its mention and hashtag ranges linked.
// Posts without content blocks fall back to pattern-linking the plain desc.
func Description(item *tiktok.ItemStruct) string {
	var title string
	if item.ImagePost != nil && item.ImagePost.Title != "" {
		title = "<b>" + item.ImagePost.Title + "</b><br>"
	}

	if len(item.Contents) == 0 {
		text := mentionRe.ReplaceAllString(item.Desc, `<a href="`+mentionURL+`$1">@$1</a>`)
		text = hashtagRe.ReplaceAllString(text, `<a href="`+hashtagURL+`$1">#$1</a>`)
		return title + text
	}

	blocks := make([]string, 0, len(item.Contents))
	for _, c := range item.Contents {
		blocks = append(blocks, linkRanges(c.Desc, c.TextExtra))
	}
	return title + strings.Join(blocks, "<br>")
}

// linkRanges wraps each annotated range of desc in a link. Offsets are
// UTF-16 code units, so the text is edited in that encoding. Ranges are
// applied from the end backwards so earlier offsets stay valid.
func linkRanges(desc string, extras []tiktok.TextExtra) string {
	if len(extras) == 0 {
		return desc
	}
	sorted := append([]tiktok.TextExtra(nil), extras...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start > sorted[j].Start })

	text := utf16.Encode([]rune(desc))
	for _, e := range sorted {
		if e.Start < 0 || e.End > len(text) || e.Start > e.End {
			continue
		}

		var href string
		switch {
		case e.Type == tiktok.TextExtraMention && e.UserUniqueID != "":
			href = mentionURL + e.UserUniqueID
		case e.Type == tiktok.TextExtraHashtag && e.HashtagName != "":
			href = hashtagURL + e.HashtagName
		default:
			continue
		}

		original := string(utf16.Decode(text[e.Start:e.End]))
		link := utf16.Encode([]rune(`<a href="` + href + `">` + original + `</a>`))

		out := make([]uint16, 0, len(text)+len(link))
		out = append(out, text[:e.Start]...)
		out = append(out, link...)
		out = append(out, text[e.End:]...)
		text = out
	}
	return string(utf16.Decode(text))
}
