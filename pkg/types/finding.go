package types

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"log/slog"
)

// Confidence is the qualitative certainty band of a match.
type Confidence int

const (
	ConfidenceLow Confidence = iota + 1
	ConfidenceMedium
	ConfidenceHigh
)

// ParseConfidence parses "low", "medium" or "high".
func ParseConfidence(s string) (Confidence, error) {
	switch s {
	case "low":
		return ConfidenceLow, nil
	case "medium":
		return ConfidenceMedium, nil
	case "high":
		return ConfidenceHigh, nil
	}
	return 0, fmt.Errorf("invalid confidence %q (want low, medium or high)", s)
}

// String implements Stringer.
func (c Confidence) String() string {
	switch c {
	case ConfidenceLow:
		return "low"
	case ConfidenceMedium:
		return "medium"
	case ConfidenceHigh:
		return "high"
	}
	return "unknown"
}

// MarshalJSON implements json.Marshaler.
func (c Confidence) MarshalJSON() ([]byte, error) {
	return []byte(`"` + c.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Confidence) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("invalid confidence JSON %s", data)
	}
	parsed, err := ParseConfidence(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Detection is a content-relative match: everything the detector can know
// from the bytes alone, with no reference to where the bytes came from.
// Detections are what the cache stores per fingerprint; on a hit they are
// re-bound to the current unit's provenance, so a moved or copied file
// reports its own path, never the path first scanned.
type Detection struct {
	Provider   Provider   `json:"provider"`
	Key        string     `json:"key"`
	Confidence Confidence `json:"confidence"`
	Location   Location   `json:"location"`
	Snippet    Snippet    `json:"snippet"`
}

// KeyPreview returns a masked preview safe for logs and reports: the first
// 8 characters followed by an ellipsis. The raw key never appears in any
// rendered output.
func (d Detection) KeyPreview() string {
	const n = 8
	if len(d.Key) <= n {
		return d.Key[:len(d.Key)/2] + "..."
	}
	return d.Key[:n] + "..."
}

// Finding is a detection bound to its provenance, optionally carrying a
// validation verdict. Two findings with the same (provider, key) are
// duplicates regardless of where they were seen.
type Finding struct {
	Detection
	Provenance Provenance
	Verdict    *ValidationVerdict
}

// DedupKey identifies duplicate findings: SHA-1(provider + '\0' + key).
func (f *Finding) DedupKey() string {
	h := sha1.New()
	h.Write([]byte(f.Provider))
	h.Write([]byte{0})
	h.Write([]byte(f.Key))
	return hex.EncodeToString(h.Sum(nil))
}

// Validated reports whether a verdict has been attached.
func (f *Finding) Validated() bool {
	return f.Verdict != nil
}

// LineOrOffset returns the 1-based line when known, else the byte offset.
func (f *Finding) LineOrOffset() int {
	if l := f.Location.Source.Start.Line; l > 0 {
		return l
	}
	return int(f.Location.Offset.Start)
}

// LogValue implements slog.LogValuer so findings can never leak raw key
// material through a log call.
func (f *Finding) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("provider", string(f.Provider)),
		slog.String("key", f.KeyPreview()),
		slog.String("confidence", f.Confidence.String()),
		slog.String("path", f.Provenance.Path()),
		slog.Int("line", f.LineOrOffset()),
	)
}

// ExportRecord is the flat shape every renderer consumes. The raw key is
// deliberately absent; only the masked preview crosses this boundary.
type ExportRecord struct {
	Provider     string `json:"provider"`
	KeyPreview   string `json:"key_prefix"`
	Confidence   string `json:"confidence"`
	FileOrCommit string `json:"file_or_commit"`
	LineOrOffset int    `json:"line_or_offset"`
	Validated    bool   `json:"validated"`
	Status       string `json:"status"`
}

// Export flattens the finding into the renderer contract.
func (f *Finding) Export() ExportRecord {
	rec := ExportRecord{
		Provider:     string(f.Provider),
		KeyPreview:   f.KeyPreview(),
		Confidence:   f.Confidence.String(),
		FileOrCommit: f.Provenance.Path(),
		LineOrOffset: f.LineOrOffset(),
	}
	if f.Verdict != nil {
		rec.Validated = true
		rec.Status = string(f.Verdict.Status)
	}
	return rec
}

// CompareFindings is the deterministic output order: source kind rank,
// then path, then byte offset, then provider, then key. Returns <0, 0, >0.
func CompareFindings(a, b *Finding) int {
	if r := a.Provenance.Kind().Rank() - b.Provenance.Kind().Rank(); r != 0 {
		return r
	}
	if ap, bp := a.Provenance.Path(), b.Provenance.Path(); ap != bp {
		if ap < bp {
			return -1
		}
		return 1
	}
	if d := a.Location.Offset.Start - b.Location.Offset.Start; d != 0 {
		if d < 0 {
			return -1
		}
		return 1
	}
	if a.Provider != b.Provider {
		if a.Provider < b.Provider {
			return -1
		}
		return 1
	}
	if a.Key != b.Key {
		if a.Key < b.Key {
			return -1
		}
		return 1
	}
	return 0
}
