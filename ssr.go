package tiktok

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"
)

var (
	ssrTagOpen  = []byte(`<script id="__UNIVERSAL_DATA_FOR_REHYDRATION__" type="application/json">`)
	ssrTagClose = []byte(`</script>`)
)

// extractUniversalData finds the __UNIVERSAL_DATA_FOR_REHYDRATION__ JSON
// embedded in TikTok's server-rendered HTML and returns it unparsed.
func extractUniversalData(htmlBody []byte) ([]byte, error) {
	start := bytes.Index(htmlBody, ssrTagOpen)
	if start == -1 {
		return nil, fmt.Errorf("%w: rehydration script tag not found", ErrInvalidResponse)
	}
	start += len(ssrTagOpen)

	end := bytes.Index(htmlBody[start:], ssrTagClose)
	if end == -1 {
		return nil, fmt.Errorf("%w: closing script tag not found", ErrInvalidResponse)
	}

	jsonBytes := htmlBody[start : start+end]
	if !gjson.ValidBytes(jsonBytes) {
		return nil, fmt.Errorf("%w: ssr data is not valid json", ErrInvalidResponse)
	}
	return jsonBytes, nil
}

// scopeValue returns an entry of __DEFAULT_SCOPE__, e.g. "webapp.music-detail".
func scopeValue(data []byte, scope string) gjson.Result {
	return gjson.GetBytes(data, "__DEFAULT_SCOPE__."+escapePath(scope))
}

func escapePath(key string) string {
	r := strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`)
	return r.Replace(key)
}

// isCaptchaPage reports whether body is the verification page TikTok serves
// in place of content.
func isCaptchaPage(body []byte) bool {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return false
	}
	return doc.Find(captchaSelector).Length() > 0
}
