//go:build !ios && !android && (amd64 || arm64)

package main

import (
	"bytes"
	"io"
	"math"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/okezie/mp4parse"
	"github.com/okezie/mp4parse/internal/handles"
)

// ioDescriptor is the Go view of the C mp4parse_io struct: a read
// callback held as a raw C function pointer, plus an opaque userdata
// pointer whose target the host owns for the parser's whole lifetime.
type ioDescriptor struct {
	read     uintptr
	userdata unsafe.Pointer
}

// callbackReader adapts an ioDescriptor into an io.Reader by invoking
// the C function pointer through purego. The callback contract: a
// negative return reports an I/O error, zero is end of stream, and a
// positive value is the number of bytes written into the buffer.
type callbackReader struct {
	desc ioDescriptor
}

func (c *callbackReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	r1, _, _ := purego.SyscallN(c.desc.read,
		uintptr(unsafe.Pointer(&p[0])),
		uintptr(len(p)),
		uintptr(c.desc.userdata))
	n := int(r1)
	switch {
	case n < 0:
		return 0, &mp4parse.Error{Code: mp4parse.CodeIO, Op: "io", Msg: "read callback failed"}
	case n == 0:
		return 0, io.EOF
	case n > len(p):
		return 0, &mp4parse.Error{Code: mp4parse.CodeIO, Op: "io", Msg: "read callback overran buffer"}
	}
	return n, nil
}

// parser is the object behind an opaque mp4parse_parser handle. One
// parser holds exactly one MediaContext for its whole lifetime; a
// failed read poisons the parser permanently.
type parser struct {
	context  *mp4parse.MediaContext
	io       ioDescriptor
	poisoned bool
}

// parserNew validates the descriptor and allocates a parser in the
// fresh state, returning its handle token. It returns 0 when the
// descriptor, its userdata or its callback pointer is null; nothing
// is allocated in that case.
//
// A null callback pointer cannot be constructed in-process, but it is
// representable across the C boundary and has to be rejected
// explicitly.
func parserNew(desc *ioDescriptor) uintptr {
	if desc == nil || desc.userdata == nil || desc.read == 0 {
		return 0
	}
	p := &parser{context: mp4parse.NewMediaContext(), io: *desc}
	return handles.Register(p)
}

// parserFree releases a handle. A null or unknown handle is a fatal
// precondition violation: misuse of teardown is a host bug, not a
// recoverable error.
func parserFree(h uintptr) {
	if h == 0 || handles.Lookup(h) == nil {
		panic("mp4parse_free: invalid parser handle")
	}
	handles.Unregister(h)
}

func lookupParser(h uintptr) *parser {
	if h == 0 {
		return nil
	}
	p, _ := handles.Lookup(h).(*parser)
	return p
}

// parserRead drives the box-tree walk to completion or failure. The
// walk runs in an isolated goroutine joined before returning, so a
// panic while decoding adversarial input surfaces as CodeAssert
// rather than unwinding into the host (see runIsolated). On any
// failure the parser is poisoned: every later read or query on it
// fails with CodeBadArg without re-attempting the parse.
func parserRead(h uintptr) mp4parse.Code {
	p := lookupParser(h)
	if p == nil || p.poisoned {
		return mp4parse.CodeBadArg
	}
	err := runIsolated(func() error {
		return mp4parse.ReadMP4(&callbackReader{desc: p.io}, p.context)
	})
	if err != nil {
		p.poisoned = true
		return mp4parse.ErrorCode(err)
	}
	return mp4parse.CodeOK
}

// The query structs mirror the C output structs field for field; the
// cgo layer copies them out only on success so that a failed query
// leaves the caller's buffer untouched.
type trackInfo struct {
	trackType int32
	trackID   uint32
	duration  uint64
	mediaTime int64
}

type audioInfo struct {
	channels   uint16
	bitDepth   uint16
	sampleRate uint32
}

type videoInfo struct {
	displayWidth  uint32
	displayHeight uint32
	imageWidth    uint16
	imageHeight   uint16
}

const (
	trackTypeVideo int32 = 0
	trackTypeAudio int32 = 1
)

// parserTrackCount reports the number of tracks decoded by a prior
// successful read. Calling it with a null or poisoned handle is a
// fatal precondition violation.
func parserTrackCount(h uintptr) uint32 {
	p := lookupParser(h)
	if p == nil || p.poisoned {
		panic("mp4parse_get_track_count: invalid parser handle")
	}
	n := len(p.context.Tracks)
	if uint64(n) >= math.MaxUint32 {
		panic("mp4parse_get_track_count: track count overflow")
	}
	return uint32(n)
}

func parserTrackInfo(h uintptr, track uint32, info *trackInfo) mp4parse.Code {
	p := lookupParser(h)
	if p == nil || info == nil || p.poisoned {
		return mp4parse.CodeBadArg
	}
	if uint64(track) >= uint64(len(p.context.Tracks)) {
		return mp4parse.CodeBadArg
	}
	t := p.context.Tracks[track]

	var trackType int32
	switch t.Type {
	case mp4parse.TrackVideo:
		trackType = trackTypeVideo
	case mp4parse.TrackAudio:
		trackType = trackTypeAudio
	default:
		return mp4parse.CodeUnsupported
	}

	if p.context.Timescale == nil || t.Timescale == nil || t.Duration == nil || t.ID == nil {
		return mp4parse.CodeInvalid
	}

	// The presentation media time mixes two timescales: the media
	// start offset converts at the track timescale while the
	// empty-edit delay converts at the movie timescale.
	var mediaTime int64
	if t.MediaTime != nil {
		mediaTime = int64(mp4parse.TrackTimeToMS(*t.MediaTime, *t.Timescale))
	}
	if t.EmptyDuration != nil {
		mediaTime -= int64(mp4parse.MediaTimeToMS(*t.EmptyDuration, *p.context.Timescale))
	}

	info.trackType = trackType
	info.trackID = *t.ID
	info.duration = mp4parse.TrackTimeToMS(*t.Duration, *t.Timescale)
	info.mediaTime = mediaTime
	return mp4parse.CodeOK
}

func parserAudioInfo(h uintptr, track uint32, info *audioInfo) mp4parse.Code {
	p := lookupParser(h)
	if p == nil || info == nil || p.poisoned {
		return mp4parse.CodeBadArg
	}
	if uint64(track) >= uint64(len(p.context.Tracks)) {
		return mp4parse.CodeBadArg
	}
	t := p.context.Tracks[track]

	if t.Type != mp4parse.TrackAudio {
		return mp4parse.CodeInvalid
	}
	audio, ok := t.Data.(*mp4parse.AudioSampleEntry)
	if !ok {
		return mp4parse.CodeInvalid
	}

	info.channels = audio.ChannelCount
	info.bitDepth = audio.SampleSize
	info.sampleRate = audio.SampleRate.Whole()
	return mp4parse.CodeOK
}

func parserVideoInfo(h uintptr, track uint32, info *videoInfo) mp4parse.Code {
	p := lookupParser(h)
	if p == nil || info == nil || p.poisoned {
		return mp4parse.CodeBadArg
	}
	if uint64(track) >= uint64(len(p.context.Tracks)) {
		return mp4parse.CodeBadArg
	}
	t := p.context.Tracks[track]

	if t.Type != mp4parse.TrackVideo {
		return mp4parse.CodeInvalid
	}
	video, ok := t.Data.(*mp4parse.VideoSampleEntry)
	if !ok {
		return mp4parse.CodeInvalid
	}
	if t.Tkhd == nil {
		return mp4parse.CodeInvalid
	}

	info.displayWidth = t.Tkhd.Width.Whole()
	info.displayHeight = t.Tkhd.Height.Whole()
	info.imageWidth = video.Width
	info.imageHeight = video.Height
	return mp4parse.CodeOK
}

// bufferRead decodes a raw in-memory box stream under the same
// isolation discipline as parserRead. It succeeds when every box in
// the buffer decodes cleanly; no track accounting is retained.
func bufferRead(data unsafe.Pointer, size uintptr) bool {
	if data == nil || size < 8 {
		return false
	}
	buf := unsafe.Slice((*byte)(data), size)
	err := runIsolated(func() error {
		c := bytes.NewReader(buf)
		ctx := mp4parse.NewMediaContext()
		for {
			if _, err := mp4parse.ReadBox(c, ctx); err != nil {
				if err == io.EOF {
					return nil
				}
				return err
			}
		}
	})
	return err == nil
}
