package value

import "sync/atomic"

// buffer is the shared, immutable backing store for one or more RCStrings.
// Knight strings are copy-on-write in spirit: +, * and replace each
// materialise a fresh buffer, while a substring retains its parent's
// buffer and views only a byte range of it, avoiding a copy for the
// common case of slicing without growing.
type buffer struct {
	bytes []byte
	refs  int32
}

func newBuffer(b []byte) *buffer {
	return &buffer{bytes: b, refs: 1}
}

func (b *buffer) retain() {
	atomic.AddInt32(&b.refs, 1)
}

func (b *buffer) release() {
	atomic.AddInt32(&b.refs, -1)
}

// RCString is an immutable, reference-counted Knight string. Copying an
// RCString (assignment, passing by value) is cheap: the copy shares the
// same buffer rather than copying bytes. A plain copy does not change the
// refcount; only Retain, Release and Substr do.
type RCString struct {
	buf    *buffer
	off    int
	length int
}

// NewRCString takes ownership of b (the caller must not mutate it again)
// and wraps it as a fresh, independent string.
func NewRCString(b []byte) *RCString {
	return &RCString{buf: newBuffer(b), off: 0, length: len(b)}
}

func RCStringFromString(s string) *RCString {
	return NewRCString([]byte(s))
}

// Retain bumps the shared buffer's refcount; call before storing a copy
// of this RCString somewhere that will outlive the original reference's
// scope management (mirrors the teacher's CaptureCell.Retain/Release
// pattern, generalised from closures to strings).
func (s *RCString) Retain() {
	if s != nil {
		s.buf.retain()
	}
}

// Release drops this reference's claim on the shared buffer. It never
// frees the underlying bytes itself — Go's GC reclaims the buffer once
// no RCString references it — but keeps the refcount accounting honest
// so bugs in retain/release discipline are observable in tests.
func (s *RCString) Release() {
	if s != nil {
		s.buf.release()
	}
}

func (s *RCString) Len() int { return s.length }

func (s *RCString) Bytes() []byte {
	return s.buf.bytes[s.off : s.off+s.length]
}

func (s *RCString) String() string {
	return string(s.Bytes())
}

// Equal compares by content, not identity.
func (s *RCString) Equal(o *RCString) bool {
	if s == o {
		return true
	}
	if s == nil || o == nil {
		return false
	}
	if s.length != o.length {
		return false
	}
	return string(s.Bytes()) == string(o.Bytes())
}

// Less implements the byte-wise lexicographic ordering used by LESS and
// GREATER on strings.
func (s *RCString) Less(o *RCString) bool {
	return s.String() < o.String()
}

// Concat always materialises a fresh string.
func (s *RCString) Concat(o *RCString) *RCString {
	out := make([]byte, 0, s.length+o.length)
	out = append(out, s.Bytes()...)
	out = append(out, o.Bytes()...)
	return NewRCString(out)
}

// Repeat materialises count back-to-back copies of s. count must be >= 0.
func (s *RCString) Repeat(count int64) *RCString {
	if count <= 0 {
		return NewRCString(nil)
	}
	out := make([]byte, 0, int64(s.length)*count)
	src := s.Bytes()
	for i := int64(0); i < count; i++ {
		out = append(out, src...)
	}
	return NewRCString(out)
}

// Substr returns the [pos, pos+length) slice of s. It retains s's backing
// buffer rather than copying, since a substring is free to alias its
// parent. Bounds are the caller's responsibility — GET validates them
// against the string's length before calling this.
func (s *RCString) Substr(pos, length int) *RCString {
	s.buf.retain()
	return &RCString{buf: s.buf, off: s.off + pos, length: length}
}

// Replace returns a fresh string equal to s with the [pos, pos+length)
// slice replaced by repl. Always materialises, since the result's bytes
// are not contiguous with any single existing buffer.
func (s *RCString) Replace(pos, length int, repl *RCString) *RCString {
	src := s.Bytes()
	out := make([]byte, 0, len(src)-length+repl.Len())
	out = append(out, src[:pos]...)
	out = append(out, repl.Bytes()...)
	out = append(out, src[pos+length:]...)
	return NewRCString(out)
}
