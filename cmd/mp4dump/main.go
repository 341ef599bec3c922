// Command mp4dump reads an MP4 file and prints its movie and track
// metadata.
package main

import (
	"flag"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/okezie/mp4parse"
)

func main() {
	verbose := flag.Bool("v", false, "log every box visited by the walker")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [-v] <file.mp4>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	if *verbose {
		log.SetLevel(log.DebugLevel)
		mp4parse.SetLogCallback(log.Debugf)
	}

	f, err := os.Open(flag.Arg(0))
	if err != nil {
		log.Fatalf("open failed, err is %v", err)
	}
	defer f.Close()

	ctx := mp4parse.NewMediaContext()
	if err := mp4parse.ReadMP4(f, ctx); err != nil {
		log.Fatalf("parse failed, err is %v", err)
	}

	if ctx.Timescale != nil {
		log.Infof("movie timescale=%v, tracks=%v", *ctx.Timescale, len(ctx.Tracks))
	} else {
		log.Infof("movie has no header, tracks=%v", len(ctx.Tracks))
	}

	for i, t := range ctx.Tracks {
		dumpTrack(i, t, ctx)
	}
}

func dumpTrack(i int, t *mp4parse.Track, ctx *mp4parse.MediaContext) {
	id := "?"
	if t.ID != nil {
		id = fmt.Sprint(*t.ID)
	}
	log.Infof("track %v: id=%v type=%v", i, id, t.Type)

	if t.Timescale != nil && t.Duration != nil {
		ms := mp4parse.TrackTimeToMS(*t.Duration, *t.Timescale)
		log.Infof("  duration=%v ticks at %v Hz (%v ms)", *t.Duration, *t.Timescale, ms)
	}
	if t.EmptyDuration != nil && ctx.Timescale != nil {
		log.Infof("  empty edit=%v ms", mp4parse.MediaTimeToMS(*t.EmptyDuration, *ctx.Timescale))
	}
	if t.MediaTime != nil && t.Timescale != nil {
		log.Infof("  media start=%v ms", mp4parse.TrackTimeToMS(*t.MediaTime, *t.Timescale))
	}
	if t.Tkhd != nil {
		log.Infof("  display=%vx%v enabled=%v", t.Tkhd.Width.Float64(), t.Tkhd.Height.Float64(), t.Tkhd.Enabled)
	}

	switch d := t.Data.(type) {
	case *mp4parse.AudioSampleEntry:
		log.Infof("  audio: channels=%v bits=%v rate=%v Hz", d.ChannelCount, d.SampleSize, d.SampleRate.Whole())
	case *mp4parse.VideoSampleEntry:
		log.Infof("  video: %vx%v", d.Width, d.Height)
	default:
		log.Infof("  no recognized sample description")
	}
}
