package model

// Token is the anti-bot challenge cookie harvested from a rendered page.
// It is attached to every request of a query session and expires silently.
type Token struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain"`
}

// Valid reports whether the token carries a name and value
func (t Token) Valid() bool {
	return t.Name != "" && t.Value != ""
}
