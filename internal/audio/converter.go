package audio

import (
	"encoding/binary"
	"fmt"
	"math"

	"sttbridge/internal/ports"
)

const (
	EncodingS16LE = "s16le"
	EncodingF32LE = "f32le"
)

// ConversionError reports a failed buffer conversion. A per-buffer failure is
// non-fatal: the caller logs it and drops the buffer.
type ConversionError struct {
	Reason string
}

func (e *ConversionError) Error() string {
	return "audio conversion failed: " + e.Reason
}

// Converter transforms raw capture buffers into the transcription engine's
// required input format. One instance describes the conversion contract for
// one session.
type Converter struct {
	src ports.AudioFormat
	dst ports.AudioFormat

	srcFrameBytes int
}

// NewConverter validates the format pair. It fails when the underlying
// conversion cannot be constructed: unknown encodings, non-positive rates or
// channel counts, or an unsupported target.
func NewConverter(src, dst ports.AudioFormat) (*Converter, error) {
	if src.SampleRate <= 0 || dst.SampleRate <= 0 {
		return nil, &ConversionError{Reason: fmt.Sprintf("invalid sample rates %d -> %d", src.SampleRate, dst.SampleRate)}
	}
	if src.Channels <= 0 {
		return nil, &ConversionError{Reason: fmt.Sprintf("invalid source channel count %d", src.Channels)}
	}
	if dst.Channels != 1 {
		return nil, &ConversionError{Reason: fmt.Sprintf("unsupported target channel count %d", dst.Channels)}
	}
	if dst.Encoding != EncodingS16LE {
		return nil, &ConversionError{Reason: fmt.Sprintf("unsupported target encoding %q", dst.Encoding)}
	}

	var sampleBytes int
	switch src.Encoding {
	case EncodingS16LE:
		sampleBytes = 2
	case EncodingF32LE:
		sampleBytes = 4
	default:
		return nil, &ConversionError{Reason: fmt.Sprintf("unsupported source encoding %q", src.Encoding)}
	}

	return &Converter{
		src:           src,
		dst:           dst,
		srcFrameBytes: sampleBytes * src.Channels,
	}, nil
}

// FrameBytes returns the byte size of one source frame. Callers slicing a
// byte stream into buffers use it to keep conversions frame aligned.
func (c *Converter) FrameBytes() int { return c.srcFrameBytes }

// Source returns the capture-side format of the pair.
func (c *Converter) Source() ports.AudioFormat { return c.src }

// Target returns the engine-side format of the pair.
func (c *Converter) Target() ports.AudioFormat { return c.dst }

// Convert produces an equivalent buffer at the target format, scaling frame
// count by the sample-rate ratio. An empty input yields an empty output.
func (c *Converter) Convert(raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	if len(raw)%c.srcFrameBytes != 0 {
		return nil, &ConversionError{Reason: fmt.Sprintf("buffer length %d is not frame aligned", len(raw))}
	}

	mono := c.decodeMono(raw)
	resampled := resampleLinear(mono, c.src.SampleRate, c.dst.SampleRate)
	if len(resampled) == 0 {
		return nil, &ConversionError{Reason: "no data produced"}
	}

	out := make([]byte, len(resampled)*2)
	for i, s := range resampled {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(clampS16(s)))
	}
	return out, nil
}

// decodeMono decodes source frames into normalized samples, averaging
// channels into mono.
func (c *Converter) decodeMono(raw []byte) []float64 {
	frames := len(raw) / c.srcFrameBytes
	mono := make([]float64, frames)

	for f := 0; f < frames; f++ {
		var sum float64
		base := f * c.srcFrameBytes
		for ch := 0; ch < c.src.Channels; ch++ {
			switch c.src.Encoding {
			case EncodingS16LE:
				v := int16(binary.LittleEndian.Uint16(raw[base+ch*2:]))
				sum += float64(v) / 32768
			case EncodingF32LE:
				bits := binary.LittleEndian.Uint32(raw[base+ch*4:])
				sum += float64(math.Float32frombits(bits))
			}
		}
		mono[f] = sum / float64(c.src.Channels)
	}
	return mono
}

func resampleLinear(in []float64, srcRate, dstRate int) []float64 {
	if srcRate == dstRate || len(in) == 0 {
		out := make([]float64, len(in))
		copy(out, in)
		return out
	}

	ratio := float64(dstRate) / float64(srcRate)
	outLen := int(math.Round(float64(len(in)) * ratio))
	if outLen < 1 {
		outLen = 1
	}
	out := make([]float64, outLen)
	if len(in) == 1 {
		for i := range out {
			out[i] = in[0]
		}
		return out
	}

	step := float64(len(in)-1) / float64(outLen-1)
	if outLen == 1 {
		step = 0
	}
	for i := range out {
		pos := float64(i) * step
		idx := int(pos)
		if idx >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		frac := pos - float64(idx)
		out[i] = in[idx]*(1-frac) + in[idx+1]*frac
	}
	return out
}

func clampS16(s float64) int16 {
	v := s * 32767
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
