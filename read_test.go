package mp4parse

import (
	"bytes"
	"testing"
)

func u16be(v uint16) []byte { return []byte{byte(v >> 8), byte(v)} }

func u32be(v uint32) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}

func fullBox(version byte, flags uint32) []byte {
	return []byte{version, byte(flags >> 16), byte(flags >> 8), byte(flags)}
}

func zeros(n int) []byte { return make([]byte, n) }

func makeBox(fourcc string, payload ...[]byte) []byte {
	n := 8
	for _, p := range payload {
		n += len(p)
	}
	out := make([]byte, 0, n)
	out = append(out, u32be(uint32(n))...)
	out = append(out, fourcc...)
	for _, p := range payload {
		out = append(out, p...)
	}
	return out
}

// makeMovie builds a two-track movie: track 1 is 320x240 video, track 2
// is 48 kHz stereo audio with an edit list.
func makeMovie() []byte {
	ftyp := makeBox("ftyp", []byte("mp42"), u32be(0), []byte("isom"), []byte("mp42"))

	mvhd := makeBox("mvhd", fullBox(0, 0),
		u32be(0), u32be(0),
		u32be(1000),
		u32be(61333),
		zeros(80),
	)

	videoTkhd := makeBox("tkhd", fullBox(0, 0x3),
		u32be(0), u32be(0),
		u32be(1),
		u32be(0),
		u32be(40000),
		zeros(8),
		zeros(44),
		u32be(320<<16), u32be(240<<16),
	)
	videoMdhd := makeBox("mdhd", fullBox(0, 0),
		u32be(0), u32be(0),
		u32be(90000),
		u32be(3600000),
		zeros(4),
	)
	videoHdlr := makeBox("hdlr", fullBox(0, 0), u32be(0), []byte("vide"), zeros(12))
	avc1 := makeBox("avc1", zeros(6), u16be(1), zeros(16), u16be(320), u16be(240), zeros(50))
	videoTrak := makeBox("trak", videoTkhd,
		makeBox("mdia", videoMdhd, videoHdlr,
			makeBox("minf", makeBox("stbl", makeBox("stsd", fullBox(0, 0), u32be(1), avc1)))))

	audioTkhd := makeBox("tkhd", fullBox(0, 0x3),
		u32be(0), u32be(0),
		u32be(2),
		u32be(0),
		u32be(61333),
		zeros(8),
		zeros(44),
		u32be(0), u32be(0),
	)
	audioElst := makeBox("elst", fullBox(0, 0),
		u32be(1),
		u32be(61333),
		u32be(1024000),
		u32be(0x00010000),
	)
	audioMdhd := makeBox("mdhd", fullBox(0, 0),
		u32be(0), u32be(0),
		u32be(48000),
		u32be(2944000),
		zeros(4),
	)
	audioHdlr := makeBox("hdlr", fullBox(0, 0), u32be(0), []byte("soun"), zeros(12))
	mp4a := makeBox("mp4a", zeros(6), u16be(1), zeros(8), u16be(2), u16be(16), zeros(4), u32be(48000<<16))
	audioTrak := makeBox("trak", audioTkhd, makeBox("edts", audioElst),
		makeBox("mdia", audioMdhd, audioHdlr,
			makeBox("minf", makeBox("stbl", makeBox("stsd", fullBox(0, 0), u32be(1), mp4a)))))

	moov := makeBox("moov", mvhd, videoTrak, audioTrak)

	out := append([]byte{}, ftyp...)
	return append(out, moov...)
}

func TestReadFtyp(t *testing.T) {
	content := []byte("mp42")
	content = append(content, u32be(0)...)
	content = append(content, "isom"...)
	content = append(content, "mp42"...)
	h := BoxHeader{Type: TypeFtyp, Size: uint64(8 + len(content)), Offset: 8}

	ftyp, err := ReadFtyp(bytes.NewReader(content), h)
	if err != nil {
		t.Fatalf("ReadFtyp: %v", err)
	}
	if ftyp.MajorBrand != fourCC("mp42") || ftyp.MinorVersion != 0 {
		t.Fatalf("got brand %v minor %d", ftyp.MajorBrand, ftyp.MinorVersion)
	}
	if len(ftyp.CompatibleBrands) != 2 ||
		ftyp.CompatibleBrands[0] != fourCC("isom") ||
		ftyp.CompatibleBrands[1] != fourCC("mp42") {
		t.Fatalf("compatible brands: got %v", ftyp.CompatibleBrands)
	}
}

func TestReadFtypBadBrandListSize(t *testing.T) {
	content := []byte("mp42")
	content = append(content, u32be(0)...)
	content = append(content, "iso"...) // 3 trailing bytes
	h := BoxHeader{Type: TypeFtyp, Size: uint64(8 + len(content)), Offset: 8}

	if _, err := ReadFtyp(bytes.NewReader(content), h); !IsInvalid(err) {
		t.Fatalf("got %v, want invalid", err)
	}
}

func TestReadMvhd(t *testing.T) {
	v0 := append(fullBox(0, 0), u32be(1)...) // creation
	v0 = append(v0, u32be(2)...)             // modification
	v0 = append(v0, u32be(1000)...)
	v0 = append(v0, u32be(61333)...)
	v0 = append(v0, zeros(80)...)
	h := BoxHeader{Type: TypeMvhd, Size: uint64(8 + len(v0)), Offset: 8}

	mvhd, err := ReadMvhd(bytes.NewReader(v0), h)
	if err != nil {
		t.Fatalf("ReadMvhd v0: %v", err)
	}
	if mvhd.Timescale != 1000 || mvhd.Duration != 61333 {
		t.Fatalf("v0: got timescale %d duration %d", mvhd.Timescale, mvhd.Duration)
	}

	v1 := append(fullBox(1, 0), zeros(16)...) // 64-bit timestamps
	v1 = append(v1, u32be(1000)...)
	v1 = append(v1, []byte{0, 0, 0, 1, 0, 0, 0, 0}...) // duration 1<<32
	v1 = append(v1, zeros(80)...)
	h = BoxHeader{Type: TypeMvhd, Size: uint64(8 + len(v1)), Offset: 8}

	mvhd, err = ReadMvhd(bytes.NewReader(v1), h)
	if err != nil {
		t.Fatalf("ReadMvhd v1: %v", err)
	}
	if mvhd.Duration != 1<<32 {
		t.Fatalf("v1: got duration %d, want %d", mvhd.Duration, uint64(1)<<32)
	}
}

func TestReadMvhdUnknownVersion(t *testing.T) {
	content := append(fullBox(2, 0), zeros(96)...)
	h := BoxHeader{Type: TypeMvhd, Size: uint64(8 + len(content)), Offset: 8}
	if _, err := ReadMvhd(bytes.NewReader(content), h); !IsInvalid(err) {
		t.Fatalf("got %v, want invalid", err)
	}
}

func tkhdContent(flags uint32, reserved uint32) []byte {
	c := append(fullBox(0, flags), zeros(8)...) // timestamps
	c = append(c, u32be(7)...)                  // track id
	c = append(c, u32be(reserved)...)
	c = append(c, u32be(12000)...) // duration
	c = append(c, zeros(8)...)
	c = append(c, zeros(44)...)
	c = append(c, u32be(640<<16)...)
	c = append(c, u32be(480<<16)...)
	return c
}

func TestReadTkhd(t *testing.T) {
	cases := []struct {
		name    string
		flags   uint32
		enabled bool
	}{
		{"both flag bits", 0x3, true},
		{"enabled bit only", 0x1, false},
		{"in-movie bit only", 0x2, false},
		{"no flag bits", 0x0, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			content := tkhdContent(c.flags, 0)
			h := BoxHeader{Type: TypeTkhd, Size: uint64(8 + len(content)), Offset: 8}
			tkhd, err := ReadTkhd(bytes.NewReader(content), h)
			if err != nil {
				t.Fatalf("ReadTkhd: %v", err)
			}
			if tkhd.Enabled != c.enabled {
				t.Fatalf("enabled: got %v, want %v", tkhd.Enabled, c.enabled)
			}
			if tkhd.TrackID != 7 || tkhd.Duration != 12000 {
				t.Fatalf("got id %d duration %d", tkhd.TrackID, tkhd.Duration)
			}
			if tkhd.Width.Whole() != 640 || tkhd.Height.Whole() != 480 {
				t.Fatalf("got %vx%v", tkhd.Width.Whole(), tkhd.Height.Whole())
			}
		})
	}
}

func TestReadTkhdNonZeroReserved(t *testing.T) {
	content := tkhdContent(0x3, 0xdeadbeef)
	h := BoxHeader{Type: TypeTkhd, Size: uint64(8 + len(content)), Offset: 8}
	if _, err := ReadTkhd(bytes.NewReader(content), h); !IsInvalid(err) {
		t.Fatalf("got %v, want invalid", err)
	}
}

func TestReadBoxSkipsUnknown(t *testing.T) {
	stream := makeBox("free", zeros(24))
	stream = append(stream, makeBox("wide")...)
	r := bytes.NewReader(stream)
	ctx := NewMediaContext()

	h, err := ReadBox(r, ctx)
	if err != nil {
		t.Fatalf("ReadBox: %v", err)
	}
	if h.Type != fourCC("free") || h.Size != 32 {
		t.Fatalf("got %v size %d", h.Type, h.Size)
	}

	// The skip must leave the stream at the next sibling header.
	h, err = ReadBox(r, ctx)
	if err != nil {
		t.Fatalf("ReadBox sibling: %v", err)
	}
	if h.Type != fourCC("wide") {
		t.Fatalf("sibling: got %v, want wide", h.Type)
	}
}

func TestReadMP4(t *testing.T) {
	ctx := NewMediaContext()
	if err := ReadMP4(bytes.NewReader(makeMovie()), ctx); err != nil {
		t.Fatalf("ReadMP4: %v", err)
	}
	if ctx.Timescale == nil || *ctx.Timescale != 1000 {
		t.Fatalf("movie timescale: got %v", ctx.Timescale)
	}
	if len(ctx.Tracks) != 2 {
		t.Fatalf("tracks: got %d, want 2", len(ctx.Tracks))
	}

	video := ctx.Tracks[0]
	if video.Type != TrackVideo {
		t.Fatalf("track 0 type: got %v", video.Type)
	}
	if video.ID == nil || *video.ID != 1 {
		t.Fatalf("track 0 id: got %v", video.ID)
	}
	if video.Timescale == nil || *video.Timescale != 90000 {
		t.Fatalf("track 0 timescale: got %v", video.Timescale)
	}
	if video.Duration == nil || *video.Duration != 3600000 {
		t.Fatalf("track 0 duration: got %v", video.Duration)
	}
	if video.Tkhd == nil || !video.Tkhd.Enabled {
		t.Fatal("track 0: missing or disabled tkhd")
	}
	if video.Tkhd.Width.Whole() != 320 || video.Tkhd.Height.Whole() != 240 {
		t.Fatalf("track 0 display: got %vx%v", video.Tkhd.Width.Whole(), video.Tkhd.Height.Whole())
	}
	ventry, ok := video.Data.(*VideoSampleEntry)
	if !ok {
		t.Fatalf("track 0 sample entry: got %T", video.Data)
	}
	if ventry.Width != 320 || ventry.Height != 240 {
		t.Fatalf("track 0 image: got %dx%d", ventry.Width, ventry.Height)
	}
	if video.MediaTime != nil || video.EmptyDuration != nil {
		t.Fatal("track 0: unexpected edit list values")
	}

	audio := ctx.Tracks[1]
	if audio.Type != TrackAudio {
		t.Fatalf("track 1 type: got %v", audio.Type)
	}
	if audio.Timescale == nil || *audio.Timescale != 48000 {
		t.Fatalf("track 1 timescale: got %v", audio.Timescale)
	}
	if audio.Duration == nil || *audio.Duration != 2944000 {
		t.Fatalf("track 1 duration: got %v", audio.Duration)
	}
	if audio.MediaTime == nil || *audio.MediaTime != 1024000 {
		t.Fatalf("track 1 media time: got %v", audio.MediaTime)
	}
	aentry, ok := audio.Data.(*AudioSampleEntry)
	if !ok {
		t.Fatalf("track 1 sample entry: got %T", audio.Data)
	}
	if aentry.ChannelCount != 2 || aentry.SampleSize != 16 {
		t.Fatalf("track 1: got %d ch %d bit", aentry.ChannelCount, aentry.SampleSize)
	}
	if aentry.SampleRate.Whole() != 48000 {
		t.Fatalf("track 1 sample rate: got %v", aentry.SampleRate.Whole())
	}
}

func TestReadMP4EmptyEdit(t *testing.T) {
	elst := makeBox("elst", fullBox(0, 0),
		u32be(1),
		u32be(5000),       // segment duration, movie timescale
		u32be(0xffffffff), // media time -1: empty edit
		u32be(0x00010000),
	)
	trak := makeBox("trak", makeBox("edts", elst))
	moov := makeBox("moov", trak)

	ctx := NewMediaContext()
	if err := ReadMP4(bytes.NewReader(moov), ctx); err != nil {
		t.Fatalf("ReadMP4: %v", err)
	}
	if len(ctx.Tracks) != 1 {
		t.Fatalf("tracks: got %d", len(ctx.Tracks))
	}
	tr := ctx.Tracks[0]
	if tr.EmptyDuration == nil || *tr.EmptyDuration != 5000 {
		t.Fatalf("empty duration: got %v", tr.EmptyDuration)
	}
	if tr.MediaTime != nil {
		t.Fatalf("media time: got %v, want unset", tr.MediaTime)
	}
}

func TestReadMP4NoMoov(t *testing.T) {
	ftyp := makeBox("ftyp", []byte("mp42"), u32be(0))
	err := ReadMP4(bytes.NewReader(ftyp), NewMediaContext())
	if !IsInvalid(err) {
		t.Fatalf("got %v, want invalid", err)
	}
}

func TestReadMP4Truncated(t *testing.T) {
	movie := makeMovie()
	err := ReadMP4(bytes.NewReader(movie[:len(movie)-40]), NewMediaContext())
	if !IsEOF(err) {
		t.Fatalf("got %v, want truncation error", err)
	}
}

func TestReadMP4MalformedInnerBox(t *testing.T) {
	// An inner box whose declared size runs past its container.
	inner := append(u32be(1<<24), "trak"...)
	moov := makeBox("moov", inner, zeros(8))
	err := ReadMP4(bytes.NewReader(moov), NewMediaContext())
	if err == nil {
		t.Fatal("expected error for oversized inner box")
	}
}
