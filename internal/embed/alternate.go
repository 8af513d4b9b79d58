package embed

import (
	"net/url"

	"github.com/anatolykoptev/go_fxtok/internal/engine"
)

const maxAlternateTitle = 256

// AlternateDoc is the oEmbed-style document linked from embed pages.
// Clients use it for the author line and the provider footer.
type AlternateDoc struct {
	AuthorName   string `json:"author_name,omitempty"`
	AuthorURL    string `json:"author_url,omitempty"`
	ProviderName string `json:"provider_name"`
	ProviderURL  string `json:"provider_url"`
	Title        string `json:"title"`
	Type         string `json:"type"`
	Version      string `json:"version"`
}

// Alternate builds the document purely from query parameters:
// unique_id and nickname name the author, text overrides the title.
func Alternate(q url.Values) *AlternateDoc {
	doc := &AlternateDoc{
		ProviderName: fxApplication.Name,
		ProviderURL:  fxApplication.Website,
		Title:        "TikTok",
		Type:         "link",
		Version:      "1.0",
	}

	handle := engine.CleanHTML(q.Get("unique_id"))
	nickname := engine.CleanHTML(q.Get("nickname"))
	if handle != "" {
		doc.AuthorURL = "https://www.tiktok.com/@" + url.PathEscape(handle)
		doc.AuthorName = "@" + handle
		if nickname != "" {
			doc.AuthorName = nickname + " (@" + handle + ")"
		}
	}

	if text := engine.CleanHTML(q.Get("text")); text != "" {
		doc.Title = engine.TruncateRunes(text, maxAlternateTitle, "…")
	}
	return doc
}
