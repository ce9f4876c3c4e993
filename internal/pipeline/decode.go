package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/text/encoding/charmap"
)

// envelope is the JSON body returned by the search endpoint
type envelope struct {
	HTML string `json:"html"`
}

// DecodeEnvelope extracts the html fragment from a response body. The
// upstream service does not encode non-ASCII names consistently, so a body
// that is not valid UTF-8 JSON is retried as Latin-1.
func DecodeEnvelope(body []byte) (string, error) {
	var env envelope
	if utf8.Valid(body) {
		if err := json.Unmarshal(body, &env); err == nil {
			return env.HTML, nil
		}
	}

	latin, err := charmap.ISO8859_1.NewDecoder().Bytes(body)
	if err != nil {
		return "", fmt.Errorf("%w: latin-1: %w", ErrDecode, err)
	}
	env = envelope{}
	if err := json.Unmarshal(latin, &env); err != nil {
		return "", fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return env.HTML, nil
}

// ExtractItems returns the normalized text of every element in fragment
// matching selector. Elements with no text are dropped.
func ExtractItems(fragment, selector string) ([]string, error) {
	items := []string{}
	if strings.TrimSpace(fragment) == "" {
		return items, nil
	}

	root, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return nil, fmt.Errorf("%w: parse html: %w", ErrDecode, err)
	}

	goquery.NewDocumentFromNode(root).Find(selector).Each(func(_ int, sel *goquery.Selection) {
		text := strings.Join(strings.Fields(sel.Text()), " ")
		if text != "" {
			items = append(items, text)
		}
	})
	return items, nil
}

// ParseResults decodes a response body and extracts the matching entries
func ParseResults(body []byte, selector string) ([]string, error) {
	fragment, err := DecodeEnvelope(body)
	if err != nil {
		return nil, err
	}
	return ExtractItems(fragment, selector)
}
