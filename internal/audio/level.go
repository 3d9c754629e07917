package audio

import (
	"encoding/binary"
	"math"
)

// SilenceFloorDB is the level reported for silent or empty buffers. The
// scale is open-ended below; -160 dB is effectively digital silence.
const SilenceFloorDB = -160.0

// LevelDB computes the RMS sound level of an s16le mono buffer on a decibel
// scale relative to full scale (0 dB = maximum amplitude).
func LevelDB(pcm []byte) float64 {
	samples := len(pcm) / 2
	if samples == 0 {
		return SilenceFloorDB
	}

	var sum float64
	for i := 0; i < samples; i++ {
		v := float64(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768
		sum += v * v
	}
	rms := math.Sqrt(sum / float64(samples))
	if rms <= 0 {
		return SilenceFloorDB
	}

	db := 20 * math.Log10(rms)
	if db < SilenceFloorDB {
		return SilenceFloorDB
	}
	return db
}
