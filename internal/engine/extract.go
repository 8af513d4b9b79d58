package engine

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const scriptEndTag = "</script>"

// ExtractScript returns the raw text of the first
// <script id="scriptID" type="application/json"> block in html.
// Duplicate ids are not disambiguated: the first match wins.
func ExtractScript(html, scriptID string) (string, error) {
	startTag := `<script id="` + scriptID + `" type="application/json">`

	start := strings.Index(html, startTag)
	if start == -1 {
		// Attribute order or quoting differs from what the origin usually serves.
		if text, ok := extractScriptDOM(html, scriptID); ok {
			return text, nil
		}
		return "", fmt.Errorf("%w: script tag with id %q not found", ErrExtraction, scriptID)
	}

	jsonStart := start + len(startTag)
	jsonEnd := strings.Index(html[jsonStart:], scriptEndTag)
	if jsonEnd == -1 {
		return "", fmt.Errorf("%w: end tag not found for script %q", ErrExtraction, scriptID)
	}
	return html[jsonStart : jsonStart+jsonEnd], nil
}

// extractScriptDOM is the slow path: parse the document and look the script up by id.
func extractScriptDOM(html, scriptID string) (string, bool) {
	if !strings.Contains(html, scriptID) {
		return "", false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", false
	}

	var (
		text  string
		found bool
	)
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if id, _ := s.Attr("id"); id != scriptID {
			return true
		}
		if typ, _ := s.Attr("type"); !strings.EqualFold(typ, "application/json") {
			return true
		}
		text, found = s.Text(), true
		return false
	})
	return text, found
}

// ExtractJSON extracts the script block and decodes it into v.
// Malformed JSON is reported as ErrExtraction, same as a missing block.
func ExtractJSON(html, scriptID string, v any) error {
	raw, err := ExtractScript(html, scriptID)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("%w: decode script %q: %v", ErrExtraction, scriptID, err)
	}
	return nil
}
