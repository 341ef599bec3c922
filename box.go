package mp4parse

import (
	"encoding/binary"
	"io"
)

var be = binary.BigEndian

// FourCC is a four-byte ASCII box type tag, stored big-endian in a
// uint32 so it can be compared and switched on cheaply.
type FourCC uint32

// String returns the tag as a 4-character string.
func (f FourCC) String() string {
	return string([]byte{
		byte(f >> 24),
		byte(f >> 16),
		byte(f >> 8),
		byte(f),
	})
}

func fourCC(s string) FourCC {
	return FourCC(uint32(s[0])<<24 | uint32(s[1])<<16 | uint32(s[2])<<8 | uint32(s[3]))
}

// Box types recognized by the walker.
var (
	TypeFtyp = fourCC("ftyp")
	TypeMoov = fourCC("moov")
	TypeMvhd = fourCC("mvhd")
	TypeTrak = fourCC("trak")
	TypeTkhd = fourCC("tkhd")
	TypeEdts = fourCC("edts")
	TypeElst = fourCC("elst")
	TypeMdia = fourCC("mdia")
	TypeMdhd = fourCC("mdhd")
	TypeHdlr = fourCC("hdlr")
	TypeMinf = fourCC("minf")
	TypeStbl = fourCC("stbl")
	TypeStsd = fourCC("stsd")
	TypeMp4a = fourCC("mp4a")
	TypeEnca = fourCC("enca")
	TypeAvc1 = fourCC("avc1")
	TypeEncv = fourCC("encv")
	TypeMp4v = fourCC("mp4v")
)

// Handler types from the hdlr box.
var (
	handlerVideo = fourCC("vide")
	handlerAudio = fourCC("soun")
)

// BoxHeader is the decoded prefix of a single box.
type BoxHeader struct {
	// Type is the four character box type.
	Type FourCC
	// Size is the total size of the box in bytes, header included.
	Size uint64
	// Offset is the distance from the start of the box to the start
	// of its content: 8, or 16 when the 64-bit size extension is
	// used.
	Offset uint64
}

// ContentSize returns the number of content bytes the box declares.
func (h BoxHeader) ContentSize() uint64 {
	return h.Size - h.Offset
}

// ReadBoxHeader decodes the 8- or 16-byte prefix of a box.
//
// A size field of exactly 1 selects the 64-bit size extension. The
// decoded header always satisfies Offset <= Size and Size >= 8
// (Size >= 16 in the extended form); anything else fails with
// CodeInvalid.
//
// io.EOF is returned untouched when the stream ends before the first
// header byte: that is the walker's clean termination signal, not an
// error. A stream that ends inside the header fails with CodeEOF.
func ReadBoxHeader(r io.Reader) (BoxHeader, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		if err == io.EOF {
			return BoxHeader{}, io.EOF
		}
		return BoxHeader{}, truncated("box header")
	}
	size32 := be.Uint32(buf[0:4])
	h := BoxHeader{
		Type:   FourCC(be.Uint32(buf[4:8])),
		Size:   uint64(size32),
		Offset: 8,
	}
	if size32 == 1 {
		var ext [8]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			return BoxHeader{}, truncated("box header")
		}
		h.Size = be.Uint64(ext[:])
		h.Offset = 16
		if h.Size < 16 {
			return BoxHeader{}, invalid("box header", "extended size below 16")
		}
	} else if h.Size < 8 {
		return BoxHeader{}, invalid("box header", "size below 8")
	}
	if h.Offset > h.Size {
		return BoxHeader{}, invalid("box header", "header larger than box")
	}
	return h, nil
}

// readFullBoxExtra decodes the version and 24-bit flags prefix shared
// by all full boxes.
func readFullBoxExtra(r io.Reader) (version uint8, flags uint32, err error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, 0, truncated("full box header")
	}
	vf := be.Uint32(buf[:])
	return uint8(vf >> 24), vf & 0x00ffffff, nil
}

// skipBoxContent discards exactly Size-Offset bytes, leaving the
// stream positioned at the next sibling header.
func skipBoxContent(r io.Reader, h BoxHeader) error {
	return discard(r, int64(h.ContentSize()), h.Type.String())
}

func discard(r io.Reader, n int64, op string) error {
	if n == 0 {
		return nil
	}
	if _, err := io.CopyN(io.Discard, r, n); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return truncated(op)
		}
		return err
	}
	return nil
}

func readUint16(r io.Reader, op string) (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, readErr(err, op)
	}
	return be.Uint16(buf[:]), nil
}

func readUint32(r io.Reader, op string) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, readErr(err, op)
	}
	return be.Uint32(buf[:]), nil
}

func readUint64(r io.Reader, op string) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, readErr(err, op)
	}
	return be.Uint64(buf[:]), nil
}

// readErr maps a short read onto the taxonomy, preserving typed errors
// from the underlying source (e.g. a failing I/O callback).
func readErr(err error, op string) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return truncated(op)
	}
	return err
}
