package scanner

import (
	"bytes"
	"fmt"
)

// An ElementIterator yields the top-level elements of a JSON array, one
// verbatim byte slice at a time.  The scanner must be positioned just after
// the array's opening '[' (see SeekArray).
//
// Each slice returned by Next aliases the scanner's buffer and is only valid
// until the following call; callers that keep elements must copy them.
type ElementIterator struct {
	scanner *Scanner
	done    bool
}

func NewElementIterator(s *Scanner) *ElementIterator {
	return &ElementIterator{scanner: s}
}

// Next returns the next element of the array, or nil after the closing ']'.
// Commas and whitespace between elements are skipped freely, so a trailing
// comma before ']' is tolerated.
func (it *ElementIterator) Next() ([]byte, error) {
	if it.done {
		return nil, nil
	}
	s := it.scanner
	b, err := s.SkipSpaceAndRead()
	for err == nil && b == ',' {
		b, err = s.SkipSpaceAndRead()
	}
	if err != nil {
		return nil, err
	}
	switch b {
	case EOF:
		it.done = true
		return nil, fmt.Errorf("%w: array not properly closed", ErrTruncatedElement)
	case ']':
		it.done = true
		return nil, nil
	case '"':
		s.StartElementBefore()
		return it.scanString()
	case '{', '[':
		s.StartElementBefore()
		return it.scanStructure()
	default:
		s.StartElementBefore()
		return it.scanPrimitive()
	}
}

// scanString consumes a string element up to and including its closing
// quote.  The opening quote has been recorded already.
func (it *ElementIterator) scanString() ([]byte, error) {
	s := it.scanner
	escape := false
	for {
		b, err := s.Read()
		if err != nil {
			s.AbortElement()
			return nil, err
		}
		switch {
		case b == EOF:
			s.AbortElement()
			it.done = true
			return nil, fmt.Errorf("%w: end of input inside string", ErrTruncatedElement)
		case escape:
			escape = false
		case b == '\\':
			escape = true
		case b == '"':
			return s.EndElement(), nil
		}
	}
}

// scanStructure consumes an object or array element.  The opening brace or
// bracket has been recorded already and counts as depth 1.
func (it *ElementIterator) scanStructure() ([]byte, error) {
	s := it.scanner
	depth := 1
	inString := false
	escape := false
	for {
		b, err := s.Read()
		if err != nil {
			s.AbortElement()
			return nil, err
		}
		if b == EOF {
			s.AbortElement()
			it.done = true
			return nil, fmt.Errorf("%w: end of input inside structure", ErrTruncatedElement)
		}
		if inString {
			switch {
			case escape:
				escape = false
			case b == '\\':
				escape = true
			case b == '"':
				inString = false
			}
			continue
		}
		switch b {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return s.EndElement(), nil
			}
		}
	}
}

// scanPrimitive consumes a number, true, false or null.  The first byte has
// been recorded already.  The delimiter (',' or ']') is left unconsumed, and
// trailing whitespace is trimmed from the emitted bytes.  End of input with
// at least one accumulated byte terminates the element (and the array).
func (it *ElementIterator) scanPrimitive() ([]byte, error) {
	s := it.scanner
	for {
		b, err := s.Read()
		if err != nil {
			s.AbortElement()
			return nil, err
		}
		switch b {
		case EOF:
			it.done = true
			return trimElement(s.EndElement()), nil
		case ',', ']':
			s.Back()
			return trimElement(s.EndElement()), nil
		}
	}
}

func trimElement(elt []byte) []byte {
	return bytes.TrimRight(elt, " \t\r\n")
}
