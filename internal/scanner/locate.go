package scanner

// SeekArray advances the scanner to just after the opening '[' of the array
// under the given key.  An empty key targets the first array outside any
// string literal.  Matching is string-aware: the key bytes are only matched
// against whole string tokens, never against the inside of a longer string
// value, and the token must be followed by optional whitespace, ':', optional
// whitespace and '['.
func (s *Scanner) SeekArray(key string) error {
	if key == "" {
		return s.seekFirstArray()
	}
	keyBytes := []byte(key)
	var b byte
	var err error
	pending := false
	for {
		if pending {
			pending = false
		} else {
			b, err = s.Read()
			if err != nil {
				return err
			}
		}
		switch b {
		case EOF:
			return ErrTargetNotFound
		case '"':
			match, err := s.matchStringToken(keyBytes)
			if err != nil {
				return err
			}
			if !match {
				continue
			}
			b, err = s.SkipSpaceAndRead()
			if err != nil {
				return err
			}
			if b != ':' {
				// A string value that happens to equal the key.
				pending = true
				continue
			}
			b, err = s.SkipSpaceAndRead()
			if err != nil {
				return err
			}
			if b == '[' {
				return nil
			}
			// The key maps to a non-array value; keep looking for
			// another occurrence.
			pending = true
		}
	}
}

// seekFirstArray skips whitespace and string literals until the first '['.
func (s *Scanner) seekFirstArray() error {
	for {
		b, err := s.Read()
		if err != nil {
			return err
		}
		switch b {
		case EOF:
			return ErrTargetNotFound
		case '[':
			return nil
		case '"':
			if _, err := s.matchStringToken(nil); err != nil {
				return err
			}
		}
	}
}

// matchStringToken walks a string literal whose opening quote has already
// been consumed, reporting whether its raw contents equal key.  Escape
// sequences are walked over but never match: keys are matched on their
// literal bytes, as in the rest of the pipeline.
func (s *Scanner) matchStringToken(key []byte) (bool, error) {
	i := 0
	matching := key != nil
	escape := false
	for {
		b, err := s.Read()
		if err != nil {
			return false, err
		}
		switch {
		case b == EOF:
			return false, ErrTargetNotFound
		case escape:
			escape = false
			matching = false
		case b == '\\':
			escape = true
			matching = false
		case b == '"':
			return matching && i == len(key), nil
		case matching:
			if i < len(key) && b == key[i] {
				i++
			} else {
				matching = false
			}
		}
	}
}
