package types

// Snippet contains context around a match.
type Snippet struct {
	Before   []byte `json:"before"`
	Matching []byte `json:"matching"`
	After    []byte `json:"after"`
}

// Redacted renders the snippet with the matched material replaced by a
// masked preview, for reports and logs.
func (s Snippet) Redacted() string {
	d := Detection{Key: string(s.Matching)}
	return string(s.Before) + "[" + d.KeyPreview() + "]" + string(s.After)
}
