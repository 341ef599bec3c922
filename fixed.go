package mp4parse

// Fixed32 is a 32-bit value in 16.16 fixed point: the high 16 bits
// are the integer part, the low 16 bits the fraction. Track display
// dimensions and audio sample rates are stored in this form and only
// converted to integer units at the query boundary.
type Fixed32 uint32

// Whole truncates to integer units, discarding the fraction.
func (f Fixed32) Whole() uint32 {
	return uint32(f) >> 16
}

// Float64 converts to a floating point value, fraction included.
func (f Fixed32) Float64() float64 {
	return float64(f) / 65536.0
}

// MediaTimeToMS converts ticks at the movie timescale to
// milliseconds.
func MediaTimeToMS(ticks uint64, timescale uint32) uint64 {
	return ticks * 1000 / uint64(timescale)
}

// TrackTimeToMS converts ticks at a track's local timescale to
// milliseconds. It is kept distinct from MediaTimeToMS because track
// queries mix the two scales: a track's media time is converted at
// the track timescale while its empty-edit duration is converted at
// the movie timescale.
func TrackTimeToMS(ticks uint64, timescale uint32) uint64 {
	return ticks * 1000 / uint64(timescale)
}
