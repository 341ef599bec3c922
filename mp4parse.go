// Package mp4parse decodes track metadata from ISO Base Media File
// Format (aka video/mp4) streams.
//
// The package walks the recursive box structure of a stream and
// extracts the subset of it needed to enumerate tracks: movie and
// track timescales, durations, edit-list offsets and the sample-entry
// description of each track. It is strictly a decoder; boxes it does
// not recognize are skipped structurally and sample payloads are never
// interpreted.
//
// For most use cases, call ReadMP4 with an io.Reader and inspect the
// resulting MediaContext. The capi directory wraps the same engine in
// a C-callable library (build with -buildmode=c-shared) for use from
// non-Go hosts.
package mp4parse

// TrackType identifies the media carried by a track.
type TrackType int

const (
	// TrackVideo is a visual track ('vide' handler).
	TrackVideo TrackType = iota
	// TrackAudio is a sound track ('soun' handler).
	TrackAudio
	// TrackUnknown is any other handler type. Unknown tracks are
	// counted but rejected by type-specific queries.
	TrackUnknown
)

// String returns the string representation of the track type.
func (t TrackType) String() string {
	switch t {
	case TrackVideo:
		return "video"
	case TrackAudio:
		return "audio"
	default:
		return "unknown"
	}
}

// SampleEntry is the tagged description of a track's sample format.
// Exactly one concrete type backs it per track: AudioSampleEntry or
// VideoSampleEntry.
type SampleEntry interface {
	isSampleEntry()
}

// AudioSampleEntry describes an audio track's sample format ('mp4a'
// and friends from the stsd box).
type AudioSampleEntry struct {
	ChannelCount uint16
	// SampleSize is the sample bit depth.
	SampleSize uint16
	// SampleRate is in Hz, stored as 16.16 fixed point. Callers
	// convert to integer Hz only at the output boundary.
	SampleRate Fixed32
}

func (*AudioSampleEntry) isSampleEntry() {}

// VideoSampleEntry describes a video track's coded image size ('avc1'
// and friends from the stsd box).
type VideoSampleEntry struct {
	Width  uint16
	Height uint16
}

func (*VideoSampleEntry) isSampleEntry() {}

// Track is the decoded metadata of a single trak box.
//
// Fields decoded from optional or independently-parsed boxes are
// pointers; nil means the originating box was absent or did not carry
// the value, which is distinct from a present zero.
type Track struct {
	Type TrackType

	// Timescale and Duration come from the track's mdhd box and are
	// in track-local ticks per second / ticks.
	Timescale *uint32
	Duration  *uint64

	// MediaTime is the track's media start time from its edit list,
	// in track-local ticks. EmptyDuration is the leading empty-edit
	// duration, in movie-timescale ticks.
	MediaTime     *uint64
	EmptyDuration *uint64

	// ID comes from the tkhd box.
	ID *uint32

	// Data is the first recognized sample entry, or nil.
	Data SampleEntry

	// Tkhd is the decoded track header, retained for its display
	// dimensions.
	Tkhd *TrackHeaderBox
}

// MediaContext is the accumulated result of one decode pass.
type MediaContext struct {
	// Timescale is the movie timescale from the mvhd box, in ticks
	// per second. Nil until an mvhd box has been decoded.
	Timescale *uint32
	// Tracks holds one entry per trak box, in file order.
	Tracks []*Track
}

// NewMediaContext returns an empty context ready for ReadMP4.
func NewMediaContext() *MediaContext {
	return &MediaContext{}
}

// FileTypeBox is a decoded ftyp box.
type FileTypeBox struct {
	MajorBrand       FourCC
	MinorVersion     uint32
	CompatibleBrands []FourCC
}

// MovieHeaderBox is a decoded mvhd box. Only the fields needed for
// time conversion are retained.
type MovieHeaderBox struct {
	// Timescale is in ticks per second.
	Timescale uint32
	// Duration is in movie-timescale ticks.
	Duration uint64
}

// TrackHeaderBox is a decoded tkhd box.
type TrackHeaderBox struct {
	TrackID uint32
	Enabled bool
	// Duration is in movie-timescale ticks.
	Duration uint64
	// Width and Height are the display dimensions in 16.16 fixed
	// point.
	Width  Fixed32
	Height Fixed32
}

// MediaHeaderBox is a decoded mdhd box.
type MediaHeaderBox struct {
	// Timescale is in track-local ticks per second.
	Timescale uint32
	// Duration is in track-local ticks.
	Duration uint64
}

// HandlerBox is a decoded hdlr box.
type HandlerBox struct {
	HandlerType FourCC
}
