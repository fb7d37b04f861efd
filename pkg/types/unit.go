package types

// SourceKind names which adapter produced a unit. Rank order is the
// tie-break order used when deduplicating findings, so it is part of the
// output contract, not presentation.
type SourceKind string

const (
	SourceFile   SourceKind = "file"
	SourceCommit SourceKind = "commit"
	SourceDiff   SourceKind = "diff"
	SourceCI     SourceKind = "ci"
)

// Rank returns the kind's position in the dedup tie-break order.
func (k SourceKind) Rank() int {
	switch k {
	case SourceFile:
		return 0
	case SourceCommit:
		return 1
	case SourceDiff:
		return 2
	case SourceCI:
		return 3
	}
	return 4
}

// ScannableUnit is one addressable chunk of text eligible for matching.
// Units are immutable once produced; adapters hand them to the orchestrator
// and never touch them again.
type ScannableUnit struct {
	Content     []byte
	Fingerprint Fingerprint
	Provenance  Provenance
}

// NewScannableUnit builds a unit with a content fingerprint.
func NewScannableUnit(content []byte, prov Provenance) ScannableUnit {
	return ScannableUnit{
		Content:     content,
		Fingerprint: ComputeFingerprint(content),
		Provenance:  prov,
	}
}

// NewDiffScannableUnit builds a unit whose fingerprint folds in the ref
// pair, for content yielded by a branch-diff scan.
func NewDiffScannableUnit(content []byte, base, compare string, prov Provenance) ScannableUnit {
	return ScannableUnit{
		Content:     content,
		Fingerprint: ComputeDiffFingerprint(base, compare, content),
		Provenance:  prov,
	}
}
