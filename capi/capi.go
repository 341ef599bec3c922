//go:build !ios && !android && (amd64 || arm64)

// The capi directory builds the C-callable mp4parse library:
//
//	go build -buildmode=c-shared -o libmp4parse.so ./capi
//
// The exported surface is an opaque parser handle created from an
// mp4parse_io descriptor, a read entry point that drives the box-tree
// walk, and query functions over the decoded track metadata. All
// functions return status codes; malformed media never unwinds into
// the host.
package main

/*
#include <stdbool.h>
#include <stddef.h>
#include <stdint.h>

typedef enum mp4parse_error {
	MP4PARSE_OK = 0,
	MP4PARSE_ERROR_BADARG = 1,
	MP4PARSE_ERROR_INVALID = 2,
	MP4PARSE_ERROR_UNSUPPORTED = 3,
	MP4PARSE_ERROR_EOF = 4,
	MP4PARSE_ERROR_ASSERT = 5,
	MP4PARSE_ERROR_IO = 6
} mp4parse_error;

typedef enum mp4parse_track_type {
	MP4PARSE_TRACK_TYPE_VIDEO = 0,
	MP4PARSE_TRACK_TYPE_AUDIO = 1
} mp4parse_track_type;

typedef struct mp4parse_track_info {
	mp4parse_track_type track_type;
	uint32_t track_id;
	uint64_t duration;
	int64_t media_time;
} mp4parse_track_info;

typedef struct mp4parse_track_audio_info {
	uint16_t channels;
	uint16_t bit_depth;
	uint32_t sample_rate;
} mp4parse_track_audio_info;

typedef struct mp4parse_track_video_info {
	uint32_t display_width;
	uint32_t display_height;
	uint16_t image_width;
	uint16_t image_height;
} mp4parse_track_video_info;

typedef intptr_t (*mp4parse_read_fn)(uint8_t *buffer, size_t size, void *userdata);

typedef struct mp4parse_io {
	mp4parse_read_fn read;
	void *userdata;
} mp4parse_io;

typedef struct mp4parse_parser mp4parse_parser;
*/
import "C"

import (
	"unsafe"

	"github.com/okezie/mp4parse"
)

func main() {}

// mp4parse_new allocates a parser reading from the supplied
// mp4parse_io. It returns null when the descriptor or either of its
// members is null.
//
//export mp4parse_new
func mp4parse_new(io *C.mp4parse_io) *C.mp4parse_parser {
	if io == nil {
		return nil
	}
	desc := ioDescriptor{
		read:     uintptr(unsafe.Pointer(io.read)),
		userdata: io.userdata,
	}
	h := parserNew(&desc)
	if h == 0 {
		return nil
	}
	return (*C.mp4parse_parser)(unsafe.Pointer(h))
}

// mp4parse_free releases a parser allocated by mp4parse_new. A null
// parser is a fatal precondition violation.
//
//export mp4parse_free
func mp4parse_free(parser *C.mp4parse_parser) {
	parserFree(uintptr(unsafe.Pointer(parser)))
}

// mp4parse_read runs the parser to the end of the stream or to the
// first error, after which the decoded track metadata can be queried.
//
//export mp4parse_read
func mp4parse_read(parser *C.mp4parse_parser) C.mp4parse_error {
	return C.mp4parse_error(parserRead(uintptr(unsafe.Pointer(parser))))
}

// mp4parse_get_track_count returns the number of tracks found by a
// previous successful mp4parse_read call.
//
//export mp4parse_get_track_count
func mp4parse_get_track_count(parser *C.mp4parse_parser) C.uint32_t {
	return C.uint32_t(parserTrackCount(uintptr(unsafe.Pointer(parser))))
}

// mp4parse_get_track_info fills info with metadata for the given
// track index.
//
//export mp4parse_get_track_info
func mp4parse_get_track_info(parser *C.mp4parse_parser, track C.uint32_t, info *C.mp4parse_track_info) C.mp4parse_error {
	h := uintptr(unsafe.Pointer(parser))
	if info == nil {
		return C.mp4parse_error(parserTrackInfo(h, uint32(track), nil))
	}
	var tmp trackInfo
	rv := parserTrackInfo(h, uint32(track), &tmp)
	if rv == mp4parse.CodeOK {
		info.track_type = C.mp4parse_track_type(tmp.trackType)
		info.track_id = C.uint32_t(tmp.trackID)
		info.duration = C.uint64_t(tmp.duration)
		info.media_time = C.int64_t(tmp.mediaTime)
	}
	return C.mp4parse_error(rv)
}

// mp4parse_get_track_audio_info fills info with the audio sample
// description of the given track index.
//
//export mp4parse_get_track_audio_info
func mp4parse_get_track_audio_info(parser *C.mp4parse_parser, track C.uint32_t, info *C.mp4parse_track_audio_info) C.mp4parse_error {
	h := uintptr(unsafe.Pointer(parser))
	if info == nil {
		return C.mp4parse_error(parserAudioInfo(h, uint32(track), nil))
	}
	var tmp audioInfo
	rv := parserAudioInfo(h, uint32(track), &tmp)
	if rv == mp4parse.CodeOK {
		info.channels = C.uint16_t(tmp.channels)
		info.bit_depth = C.uint16_t(tmp.bitDepth)
		info.sample_rate = C.uint32_t(tmp.sampleRate)
	}
	return C.mp4parse_error(rv)
}

// mp4parse_get_track_video_info fills info with the video sample
// description of the given track index.
//
//export mp4parse_get_track_video_info
func mp4parse_get_track_video_info(parser *C.mp4parse_parser, track C.uint32_t, info *C.mp4parse_track_video_info) C.mp4parse_error {
	h := uintptr(unsafe.Pointer(parser))
	if info == nil {
		return C.mp4parse_error(parserVideoInfo(h, uint32(track), nil))
	}
	var tmp videoInfo
	rv := parserVideoInfo(h, uint32(track), &tmp)
	if rv == mp4parse.CodeOK {
		info.display_width = C.uint32_t(tmp.displayWidth)
		info.display_height = C.uint32_t(tmp.displayHeight)
		info.image_width = C.uint16_t(tmp.imageWidth)
		info.image_height = C.uint16_t(tmp.imageHeight)
	}
	return C.mp4parse_error(rv)
}

// mp4parse_read_box_from_buffer decodes a box stream held in memory,
// without an I/O callback, and reports whether it parsed cleanly.
//
//export mp4parse_read_box_from_buffer
func mp4parse_read_box_from_buffer(buffer *C.uint8_t, size C.size_t) C.bool {
	return C.bool(bufferRead(unsafe.Pointer(buffer), uintptr(size)))
}
