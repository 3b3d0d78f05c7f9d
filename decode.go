package llmstream

// Decode extracts the fragment carried by line using p's decoder.
// A panicking decoder degrades to an empty fragment so one bad line never
// aborts a session.
func Decode(p Provider, line string) (fragment string) {
	defer func() {
		if recover() != nil {
			fragment = ""
		}
	}()
	return p.DecodeChunk(line)
}

// DecodeError reports the error event carried by line, if p understands
// error events at all. A panicking decoder reports nothing.
func DecodeError(p Provider, line string) (err error) {
	ed, ok := p.(ErrorDecoder)
	if !ok {
		return nil
	}
	defer func() {
		if recover() != nil {
			err = nil
		}
	}()
	return ed.DecodeError(line)
}
