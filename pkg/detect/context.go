package detect

// extractContext extracts up to n lines before and after a match span.
// The returned slices are independent copies, so storing a small snippet
// does not pin the whole file content in memory.
func extractContext(content []byte, start, end, n int) (before, after []byte) {
	if n <= 0 {
		return nil, nil
	}
	if start < 0 || end < 0 || start > end || end > len(content) {
		return nil, nil
	}

	if b := linesBefore(content, start, n); len(b) > 0 {
		before = append([]byte{}, b...)
	}
	if a := linesAfter(content, end, n); len(a) > 0 {
		after = append([]byte{}, a...)
	}
	return before, after
}

// linesBefore walks backward from start counting newlines.
func linesBefore(content []byte, start, n int) []byte {
	if start == 0 {
		return nil
	}

	found := 0
	for pos := start - 1; pos >= 0; pos-- {
		if content[pos] != '\n' {
			continue
		}
		found++
		if found < n {
			continue
		}
		// Nth newline reached; back up to the start of that line.
		for pos > 0 {
			pos--
			if content[pos] == '\n' {
				return content[pos+1 : start]
			}
		}
		return content[:start]
	}
	return content[:start]
}

// linesAfter walks forward from end counting newlines.
func linesAfter(content []byte, end, n int) []byte {
	if end >= len(content) {
		return nil
	}

	start := end
	if content[end] == '\n' {
		start = end + 1
		if start >= len(content) {
			return nil
		}
	}

	found := 0
	for pos := start; pos < len(content); pos++ {
		if content[pos] != '\n' {
			continue
		}
		found++
		if found == n {
			return content[start : pos+1]
		}
	}
	return content[start:]
}

// contextWindow returns the bytes within radius of the [start, end) span,
// the neighborhood searched for context keywords and placeholder markers.
func contextWindow(content []byte, start, end, radius int) []byte {
	lo := start - radius
	if lo < 0 {
		lo = 0
	}
	hi := end + radius
	if hi > len(content) {
		hi = len(content)
	}
	return content[lo:hi]
}
