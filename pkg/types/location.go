package types

// OffsetSpan is byte range [Start, End) - half-open interval.
type OffsetSpan struct {
	Start int64
	End   int64
}

// SourcePoint is line:column position (1-based).
type SourcePoint struct {
	Line   int
	Column int
}

// SourceSpan is start-end line:column range.
type SourceSpan struct {
	Start SourcePoint
	End   SourcePoint
}

// Location combines byte offsets and source positions.
type Location struct {
	Offset OffsetSpan
	Source SourceSpan
}

// LocationFor builds a Location for the byte span [start, end) of content,
// resolving both endpoints to line:column.
func LocationFor(content []byte, start, end int) Location {
	sl, sc := ComputeLineColumn(content, start)
	el, ec := ComputeLineColumn(content, end)
	return Location{
		Offset: OffsetSpan{Start: int64(start), End: int64(end)},
		Source: SourceSpan{
			Start: SourcePoint{Line: sl, Column: sc},
			End:   SourcePoint{Line: el, Column: ec},
		},
	}
}

// ComputeLineColumn computes line and column numbers from a byte offset in
// content. Lines and columns are 1-indexed.
func ComputeLineColumn(content []byte, byteOffset int) (line, column int) {
	line = 1
	column = 1
	for i := 0; i < byteOffset && i < len(content); i++ {
		if content[i] == '\n' {
			line++
			column = 1
		} else {
			column++
		}
	}
	return line, column
}
