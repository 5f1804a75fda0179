package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/go-audio/wav"
)

const wavFormatPCM = 1

var (
	// ErrInvalidWAV is returned for data that is not a RIFF/WAVE file.
	ErrInvalidWAV = errors.New("invalid wav data")
	// ErrUnsupportedWAV is returned for WAV files that are not 16-bit PCM.
	ErrUnsupportedWAV = errors.New("unsupported wav format")
)

// PCM is decoded 16-bit little-endian interleaved audio, the layout oto
// plays with FormatSignedInt16LE.
type PCM struct {
	SampleRate int
	Channels   int
	Data       []byte
}

// Duration is the playback length of the samples.
func (p PCM) Duration() time.Duration {
	frameSize := p.Channels * 2
	if frameSize == 0 || p.SampleRate == 0 {
		return 0
	}
	frames := len(p.Data) / frameSize
	return time.Duration(frames) * time.Second / time.Duration(p.SampleRate)
}

// DecodeWAV decodes a RIFF/WAVE file carrying 16-bit PCM samples.
func DecodeWAV(data []byte) (PCM, error) {
	decoder := wav.NewDecoder(bytes.NewReader(data))
	if !decoder.IsValidFile() {
		if err := decoder.Err(); err != nil {
			return PCM{}, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
		}
		return PCM{}, ErrInvalidWAV
	}

	if decoder.WavAudioFormat != wavFormatPCM || decoder.BitDepth != 16 {
		return PCM{}, fmt.Errorf("%w: format %d, %d bits",
			ErrUnsupportedWAV, decoder.WavAudioFormat, decoder.BitDepth)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return PCM{}, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
	}

	channels := buf.Format.NumChannels
	samples := buf.Data
	// Drop a trailing partial frame.
	samples = samples[:len(samples)-len(samples)%channels]

	out := make([]byte, len(samples)*2)
	for i, sample := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(sample)))
	}

	return PCM{
		SampleRate: buf.Format.SampleRate,
		Channels:   channels,
		Data:       out,
	}, nil
}
