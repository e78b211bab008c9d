package sshtype

// Reader walks a buffer field by field. The first failure sticks: later reads
// return zero values and Err reports the original error.
type Reader struct {
	buf []byte
	off int
	err error
}

func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Offset is the number of bytes consumed so far.
func (r *Reader) Offset() int { return r.off }

// Remaining is the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.off }

func (r *Reader) Err() error { return r.err }

// Fail records a semantic decoding error. It does not replace an earlier one.
func (r *Reader) Fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *Reader) advance(n int, err error) bool {
	if err != nil {
		r.err = err
		return false
	}
	r.off += n
	return true
}

func (r *Reader) Uint8() byte {
	if r.err != nil {
		return 0
	}
	n, v, err := ParseByte(r.buf[r.off:])
	if !r.advance(n, err) {
		return 0
	}
	return v
}

func (r *Reader) Uint32() uint32 {
	if r.err != nil {
		return 0
	}
	n, v, err := ParseUint32(r.buf[r.off:])
	if !r.advance(n, err) {
		return 0
	}
	return v
}

func (r *Reader) Bool() bool {
	if r.err != nil {
		return false
	}
	n, v, err := ParseBool(r.buf[r.off:])
	if !r.advance(n, err) {
		return false
	}
	return v
}

// Blob reads a length-prefixed byte blob.
func (r *Reader) Blob() []byte {
	if r.err != nil {
		return nil
	}
	n, v, err := ParseBinary(r.buf[r.off:])
	if !r.advance(n, err) {
		return nil
	}
	return v
}

// Text reads a length-prefixed UTF-8 string.
func (r *Reader) Text() string {
	if r.err != nil {
		return ""
	}
	n, v, err := ParseString(r.buf[r.off:])
	if !r.advance(n, err) {
		return ""
	}
	return v
}

// Finish returns the sticky error, or ErrTrailingData if the buffer was not
// consumed exactly.
func (r *Reader) Finish() error {
	if r.err != nil {
		return r.err
	}
	if r.Remaining() != 0 {
		return ErrTrailingData
	}
	return nil
}
