package pipeline

import (
	"errors"
	"testing"
)

const itemSelector = ".uli-search-item"

func TestParseResults(t *testing.T) {
	body := []byte(`{"html":"<div class=\"uli-search-item\">  Song   One </div><p>noise</p><div class=\"uli-search-item\">Song Two</div><div class=\"uli-search-item\">   </div>"}`)

	items, err := ParseResults(body, itemSelector)
	if err != nil {
		t.Fatalf("ParseResults failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d: %v", len(items), items)
	}
	if items[0] != "Song One" || items[1] != "Song Two" {
		t.Errorf("unexpected items: %q", items)
	}
}

func TestParseResults_EmptyFragment(t *testing.T) {
	items, err := ParseResults([]byte(`{"html":""}`), itemSelector)
	if err != nil {
		t.Fatalf("ParseResults failed: %v", err)
	}
	if items == nil || len(items) != 0 {
		t.Errorf("expected empty non-nil list, got %#v", items)
	}
}

func TestParseResults_NoMatchingElements(t *testing.T) {
	items, err := ParseResults([]byte(`{"html":"<div class=\"other\">x</div>"}`), itemSelector)
	if err != nil {
		t.Fatalf("ParseResults failed: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected no items, got %v", items)
	}
}

func TestDecodeEnvelope_Latin1Fallback(t *testing.T) {
	// 0xE9 is "é" in ISO-8859-1 and invalid as UTF-8
	body := []byte("{\"html\":\"<div class=\\\"uli-search-item\\\">Jos\xe9</div>\"}")

	items, err := ParseResults(body, itemSelector)
	if err != nil {
		t.Fatalf("ParseResults failed: %v", err)
	}
	if len(items) != 1 || items[0] != "José" {
		t.Errorf("expected [José], got %q", items)
	}
}

func TestDecodeEnvelope_UTF8(t *testing.T) {
	fragment, err := DecodeEnvelope([]byte(`{"html":"<b>Beyoncé</b>"}`))
	if err != nil {
		t.Fatalf("DecodeEnvelope failed: %v", err)
	}
	if fragment != "<b>Beyoncé</b>" {
		t.Errorf("unexpected fragment %q", fragment)
	}
}

func TestDecodeEnvelope_Invalid(t *testing.T) {
	for _, body := range []string{"<html>Attention Required</html>", "", "{\"html\":"} {
		_, err := DecodeEnvelope([]byte(body))
		if !errors.Is(err, ErrDecode) {
			t.Errorf("body %q: expected ErrDecode, got %v", body, err)
		}
	}
}
