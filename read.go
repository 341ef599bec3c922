package mp4parse

import (
	"bytes"
	"io"
	"math"
)

// ReadMP4 drives the box-tree walk over r until the stream is
// exhausted, populating ctx as a side effect. Reaching the end of the
// stream at a box boundary is the normal termination; any other error
// aborts the whole walk. A stream with no top-level moov box fails
// with CodeInvalid.
func ReadMP4(r io.Reader, ctx *MediaContext) error {
	foundMoov := false
	for {
		h, err := ReadBox(r, ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if h.Type == TypeMoov {
			foundMoov = true
		}
	}
	if !foundMoov {
		return invalid("read", "no moov box")
	}
	return nil
}

// ReadBox reads a single box from r and dispatches on its type:
// container boxes recurse, known leaves are parsed into ctx, and
// everything else is skipped structurally, consuming exactly the
// declared content size. It returns the header of the box it consumed,
// or io.EOF when the stream ends cleanly at the box boundary.
func ReadBox(r io.Reader, ctx *MediaContext) (BoxHeader, error) {
	h, err := ReadBoxHeader(r)
	if err != nil {
		return BoxHeader{}, err
	}
	if h.ContentSize() > math.MaxInt64 {
		return h, invalid(h.Type.String(), "content size overflow")
	}
	switch h.Type {
	case TypeFtyp:
		err = parseLeaf(r, h, func(c io.Reader) error {
			ftyp, err := ReadFtyp(c, h)
			if err != nil {
				return err
			}
			logf("'%v' %d bytes '%v' v%d, %d compatible brands",
				h.Type, h.Size, ftyp.MajorBrand, ftyp.MinorVersion, len(ftyp.CompatibleBrands))
			return nil
		})
	case TypeMoov:
		logf("'%v' %d bytes, recursing", h.Type, h.Size)
		err = readMoov(r, h, ctx)
	default:
		logf("'%v' %d bytes (skipped)", h.Type, h.Size)
		err = skipBoxContent(r, h)
	}
	return h, err
}

// recurse buffers the declared content region of a container box and
// walks its children against the buffered cursor from offset 0. The
// cursor isolates recursion bounds to the declared box size: a
// malformed inner box cannot read past its container.
func recurse(r io.Reader, h BoxHeader, visit func(c *bytes.Reader, ch BoxHeader) error) error {
	buf, err := io.ReadAll(io.LimitReader(r, int64(h.ContentSize())))
	if err != nil {
		return readErr(err, h.Type.String())
	}
	c := bytes.NewReader(buf)
	for {
		ch, err := ReadBoxHeader(c)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if ch.ContentSize() > math.MaxInt64 {
			return invalid(ch.Type.String(), "content size overflow")
		}
		if err := visit(c, ch); err != nil {
			return err
		}
	}
}

// parseLeaf bounds the source to the box's declared content, runs fn
// against the bound, and discards whatever fn left unread so the
// stream ends up positioned at the next sibling header.
func parseLeaf(r io.Reader, h BoxHeader, fn func(c io.Reader) error) error {
	lr := io.LimitReader(r, int64(h.ContentSize()))
	if err := fn(lr); err != nil {
		return err
	}
	_, err := io.Copy(io.Discard, lr)
	return err
}

func readMoov(r io.Reader, h BoxHeader, ctx *MediaContext) error {
	return recurse(r, h, func(c *bytes.Reader, ch BoxHeader) error {
		switch ch.Type {
		case TypeMvhd:
			return parseLeaf(c, ch, func(cr io.Reader) error {
				mvhd, err := ReadMvhd(cr, ch)
				if err != nil {
					return err
				}
				logf("'%v' timescale %d duration %d", ch.Type, mvhd.Timescale, mvhd.Duration)
				ctx.Timescale = &mvhd.Timescale
				return nil
			})
		case TypeTrak:
			logf("'%v' %d bytes, recursing", ch.Type, ch.Size)
			track := &Track{Type: TrackUnknown}
			if err := readTrak(c, ch, track); err != nil {
				return err
			}
			ctx.Tracks = append(ctx.Tracks, track)
			return nil
		default:
			logf("'%v' %d bytes (skipped)", ch.Type, ch.Size)
			return skipBoxContent(c, ch)
		}
	})
}

func readTrak(r io.Reader, h BoxHeader, t *Track) error {
	return recurse(r, h, func(c *bytes.Reader, ch BoxHeader) error {
		switch ch.Type {
		case TypeTkhd:
			return parseLeaf(c, ch, func(cr io.Reader) error {
				tkhd, err := ReadTkhd(cr, ch)
				if err != nil {
					return err
				}
				logf("'%v' id %d %vx%v", ch.Type, tkhd.TrackID, tkhd.Width.Float64(), tkhd.Height.Float64())
				t.Tkhd = tkhd
				t.ID = &tkhd.TrackID
				return nil
			})
		case TypeEdts:
			return readEdts(c, ch, t)
		case TypeMdia:
			return readMdia(c, ch, t)
		default:
			logf("'%v' %d bytes (skipped)", ch.Type, ch.Size)
			return skipBoxContent(c, ch)
		}
	})
}

func readEdts(r io.Reader, h BoxHeader, t *Track) error {
	return recurse(r, h, func(c *bytes.Reader, ch BoxHeader) error {
		if ch.Type == TypeElst {
			return parseLeaf(c, ch, func(cr io.Reader) error {
				return readElst(cr, t)
			})
		}
		return skipBoxContent(c, ch)
	})
}

func readMdia(r io.Reader, h BoxHeader, t *Track) error {
	return recurse(r, h, func(c *bytes.Reader, ch BoxHeader) error {
		switch ch.Type {
		case TypeMdhd:
			return parseLeaf(c, ch, func(cr io.Reader) error {
				mdhd, err := readMdhd(cr)
				if err != nil {
					return err
				}
				logf("'%v' timescale %d duration %d", ch.Type, mdhd.Timescale, mdhd.Duration)
				t.Timescale = &mdhd.Timescale
				t.Duration = &mdhd.Duration
				return nil
			})
		case TypeHdlr:
			return parseLeaf(c, ch, func(cr io.Reader) error {
				hdlr, err := readHdlr(cr)
				if err != nil {
					return err
				}
				logf("'%v' handler '%v'", ch.Type, hdlr.HandlerType)
				switch hdlr.HandlerType {
				case handlerVideo:
					t.Type = TrackVideo
				case handlerAudio:
					t.Type = TrackAudio
				}
				return nil
			})
		case TypeMinf:
			return readMinf(c, ch, t)
		default:
			return skipBoxContent(c, ch)
		}
	})
}

func readMinf(r io.Reader, h BoxHeader, t *Track) error {
	return recurse(r, h, func(c *bytes.Reader, ch BoxHeader) error {
		if ch.Type == TypeStbl {
			return readStbl(c, ch, t)
		}
		return skipBoxContent(c, ch)
	})
}

func readStbl(r io.Reader, h BoxHeader, t *Track) error {
	return recurse(r, h, func(c *bytes.Reader, ch BoxHeader) error {
		if ch.Type == TypeStsd {
			return parseLeaf(c, ch, func(cr io.Reader) error {
				return readStsd(cr, t)
			})
		}
		return skipBoxContent(c, ch)
	})
}

// ReadFtyp parses an ftyp box from a source bounded to the box's
// declared content.
func ReadFtyp(r io.Reader, h BoxHeader) (*FileTypeBox, error) {
	if h.Size < 16 || (h.Size-16)%4 != 0 {
		return nil, invalid("ftyp", "brand list size not a multiple of 4")
	}
	major, err := readUint32(r, "ftyp")
	if err != nil {
		return nil, err
	}
	minor, err := readUint32(r, "ftyp")
	if err != nil {
		return nil, err
	}
	count := (h.Size - 16) / 4
	var brands []FourCC
	for i := uint64(0); i < count; i++ {
		b, err := readUint32(r, "ftyp")
		if err != nil {
			return nil, err
		}
		brands = append(brands, FourCC(b))
	}
	return &FileTypeBox{
		MajorBrand:       FourCC(major),
		MinorVersion:     minor,
		CompatibleBrands: brands,
	}, nil
}

// ReadMvhd parses an mvhd box from a source bounded to the box's
// declared content. Versions other than 0 and 1 fail with CodeInvalid.
func ReadMvhd(r io.Reader, h BoxHeader) (*MovieHeaderBox, error) {
	version, _, err := readFullBoxExtra(r)
	if err != nil {
		return nil, err
	}
	switch version {
	case 1:
		// 64-bit creation and modification times.
		if err := discard(r, 16, "mvhd"); err != nil {
			return nil, err
		}
	case 0:
		// 32-bit creation and modification times.
		if err := discard(r, 8, "mvhd"); err != nil {
			return nil, err
		}
	default:
		return nil, invalid("mvhd", "unknown version")
	}
	timescale, err := readUint32(r, "mvhd")
	if err != nil {
		return nil, err
	}
	var duration uint64
	if version == 1 {
		duration, err = readUint64(r, "mvhd")
	} else {
		var d32 uint32
		d32, err = readUint32(r, "mvhd")
		duration = uint64(d32)
	}
	if err != nil {
		return nil, err
	}
	// Rate, volume, matrix and reserved fields.
	if err := discard(r, 80, "mvhd"); err != nil {
		return nil, err
	}
	return &MovieHeaderBox{Timescale: timescale, Duration: duration}, nil
}

// ReadTkhd parses a tkhd box from a source bounded to the box's
// declared content. Versions other than 0 and 1 fail with CodeInvalid,
// as does a non-zero reserved field after the track id.
func ReadTkhd(r io.Reader, h BoxHeader) (*TrackHeaderBox, error) {
	version, flags, err := readFullBoxExtra(r)
	if err != nil {
		return nil, err
	}
	// Both low flag bits are required; bit 0 alone does not count as
	// enabled.
	disabled := flags&0x1 == 0 || flags&0x2 == 0
	switch version {
	case 1:
		if err := discard(r, 16, "tkhd"); err != nil {
			return nil, err
		}
	case 0:
		if err := discard(r, 8, "tkhd"); err != nil {
			return nil, err
		}
	default:
		return nil, invalid("tkhd", "unknown version")
	}
	trackID, err := readUint32(r, "tkhd")
	if err != nil {
		return nil, err
	}
	reserved, err := readUint32(r, "tkhd")
	if err != nil {
		return nil, err
	}
	if reserved != 0 {
		return nil, invalid("tkhd", "non-zero reserved field")
	}
	var duration uint64
	if version == 1 {
		duration, err = readUint64(r, "tkhd")
	} else {
		var d32 uint32
		d32, err = readUint32(r, "tkhd")
		duration = uint64(d32)
	}
	if err != nil {
		return nil, err
	}
	if err := discard(r, 8, "tkhd"); err != nil {
		return nil, err
	}
	// Layer, alternate group, volume and the unit matrix.
	if err := discard(r, 44, "tkhd"); err != nil {
		return nil, err
	}
	width, err := readUint32(r, "tkhd")
	if err != nil {
		return nil, err
	}
	height, err := readUint32(r, "tkhd")
	if err != nil {
		return nil, err
	}
	return &TrackHeaderBox{
		TrackID:  trackID,
		Enabled:  !disabled,
		Duration: duration,
		Width:    Fixed32(width),
		Height:   Fixed32(height),
	}, nil
}

// readMdhd parses the timescale and duration out of an mdhd box; the
// language and pre-defined trailer is left to the bound.
func readMdhd(r io.Reader) (*MediaHeaderBox, error) {
	version, _, err := readFullBoxExtra(r)
	if err != nil {
		return nil, err
	}
	switch version {
	case 1:
		if err := discard(r, 16, "mdhd"); err != nil {
			return nil, err
		}
	case 0:
		if err := discard(r, 8, "mdhd"); err != nil {
			return nil, err
		}
	default:
		return nil, invalid("mdhd", "unknown version")
	}
	timescale, err := readUint32(r, "mdhd")
	if err != nil {
		return nil, err
	}
	var duration uint64
	if version == 1 {
		duration, err = readUint64(r, "mdhd")
	} else {
		var d32 uint32
		d32, err = readUint32(r, "mdhd")
		duration = uint64(d32)
	}
	if err != nil {
		return nil, err
	}
	return &MediaHeaderBox{Timescale: timescale, Duration: duration}, nil
}

// readHdlr parses the handler type out of an hdlr box; the name string
// is left to the bound.
func readHdlr(r io.Reader) (*HandlerBox, error) {
	if _, _, err := readFullBoxExtra(r); err != nil {
		return nil, err
	}
	// Pre-defined.
	if err := discard(r, 4, "hdlr"); err != nil {
		return nil, err
	}
	handler, err := readUint32(r, "hdlr")
	if err != nil {
		return nil, err
	}
	return &HandlerBox{HandlerType: FourCC(handler)}, nil
}

// readElst folds an edit list into the track: an entry with media time
// -1 is an empty edit whose segment duration (movie-timescale ticks)
// delays the track; any other entry sets the track's media start time
// (track-timescale ticks).
func readElst(r io.Reader, t *Track) error {
	version, _, err := readFullBoxExtra(r)
	if err != nil {
		return err
	}
	count, err := readUint32(r, "elst")
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		var segmentDuration uint64
		var mediaTime int64
		switch version {
		case 1:
			segmentDuration, err = readUint64(r, "elst")
			if err != nil {
				return err
			}
			var mt uint64
			mt, err = readUint64(r, "elst")
			mediaTime = int64(mt)
		case 0:
			var sd uint32
			sd, err = readUint32(r, "elst")
			if err != nil {
				return err
			}
			segmentDuration = uint64(sd)
			var mt uint32
			mt, err = readUint32(r, "elst")
			mediaTime = int64(int32(mt))
		default:
			return invalid("elst", "unknown version")
		}
		if err != nil {
			return err
		}
		// Media rate, 16.16.
		if err := discard(r, 4, "elst"); err != nil {
			return err
		}
		if mediaTime == -1 {
			d := segmentDuration
			t.EmptyDuration = &d
		} else if mediaTime >= 0 {
			mt := uint64(mediaTime)
			t.MediaTime = &mt
		}
	}
	return nil
}

// readStsd decodes the first recognized sample entry of an stsd box
// into the track's sample description. Unrecognized entry types are
// skipped and leave the description unset.
func readStsd(r io.Reader, t *Track) error {
	if _, _, err := readFullBoxExtra(r); err != nil {
		return err
	}
	count, err := readUint32(r, "stsd")
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		eh, err := ReadBoxHeader(r)
		if err != nil {
			return readErr(err, "stsd")
		}
		if eh.ContentSize() > math.MaxInt64 {
			return invalid("stsd", "content size overflow")
		}
		err = parseLeaf(r, eh, func(c io.Reader) error {
			if t.Data != nil {
				return nil
			}
			switch eh.Type {
			case TypeMp4a, TypeEnca:
				entry, err := readAudioSampleEntry(c)
				if err != nil {
					return err
				}
				t.Data = entry
			case TypeAvc1, TypeEncv, TypeMp4v:
				entry, err := readVideoSampleEntry(c)
				if err != nil {
					return err
				}
				t.Data = entry
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func readAudioSampleEntry(r io.Reader) (*AudioSampleEntry, error) {
	// Reserved bytes and the data reference index.
	if err := discard(r, 8, "audio sample entry"); err != nil {
		return nil, err
	}
	// Version, revision and vendor.
	if err := discard(r, 8, "audio sample entry"); err != nil {
		return nil, err
	}
	channels, err := readUint16(r, "audio sample entry")
	if err != nil {
		return nil, err
	}
	sampleSize, err := readUint16(r, "audio sample entry")
	if err != nil {
		return nil, err
	}
	// Pre-defined and reserved.
	if err := discard(r, 4, "audio sample entry"); err != nil {
		return nil, err
	}
	rate, err := readUint32(r, "audio sample entry")
	if err != nil {
		return nil, err
	}
	return &AudioSampleEntry{
		ChannelCount: channels,
		SampleSize:   sampleSize,
		SampleRate:   Fixed32(rate),
	}, nil
}

func readVideoSampleEntry(r io.Reader) (*VideoSampleEntry, error) {
	// Reserved bytes and the data reference index.
	if err := discard(r, 8, "video sample entry"); err != nil {
		return nil, err
	}
	// Pre-defined and reserved fields.
	if err := discard(r, 16, "video sample entry"); err != nil {
		return nil, err
	}
	width, err := readUint16(r, "video sample entry")
	if err != nil {
		return nil, err
	}
	height, err := readUint16(r, "video sample entry")
	if err != nil {
		return nil, err
	}
	// Resolution, frame count, compressor name and depth are left to
	// the bound.
	return &VideoSampleEntry{Width: width, Height: height}, nil
}
