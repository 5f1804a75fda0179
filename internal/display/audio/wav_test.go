package audio

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// encodeWAV writes samples as a canonical 44-byte-header WAV file.
func encodeWAV(sampleRate, channels, bits int, samples []byte) []byte {
	var buf bytes.Buffer
	blockAlign := channels * bits / 8

	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+len(samples)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*blockAlign))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(bits))

	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(samples)))
	buf.Write(samples)

	return buf.Bytes()
}

// tone returns n mono frames of silence-adjacent samples.
func tone(frames int) []byte {
	samples := make([]byte, frames*2)
	for i := range frames {
		binary.LittleEndian.PutUint16(samples[i*2:], uint16(i%64))
	}
	return samples
}

func TestDecodeWAV(t *testing.T) {
	samples := tone(4410)

	pcm, err := DecodeWAV(encodeWAV(44100, 1, 16, samples))

	require.NoError(t, err)
	assert.Equal(t, 44100, pcm.SampleRate)
	assert.Equal(t, 1, pcm.Channels)
	assert.Equal(t, samples, pcm.Data)
	assert.Equal(t, 100*time.Millisecond, pcm.Duration())
}

func TestDecodeWAVSkipsUnknownChunks(t *testing.T) {
	wav := encodeWAV(48000, 2, 16, tone(8))
	junk := []byte("junk\x04\x00\x00\x00abcd")
	withJunk := append(append(append([]byte{}, wav[:36]...), junk...), wav[36:]...)
	binary.LittleEndian.PutUint32(withJunk[4:8], uint32(len(withJunk)-8))

	pcm, err := DecodeWAV(withJunk)

	require.NoError(t, err)
	assert.Equal(t, 48000, pcm.SampleRate)
	assert.Equal(t, 2, pcm.Channels)
	assert.Equal(t, tone(8), pcm.Data)
}

func TestDecodeWAVKeepsNegativeSamples(t *testing.T) {
	samples := make([]byte, 4)
	binary.LittleEndian.PutUint16(samples[0:], uint16(0x8000))
	binary.LittleEndian.PutUint16(samples[2:], uint16(0xfffe))

	pcm, err := DecodeWAV(encodeWAV(44100, 1, 16, samples))

	require.NoError(t, err)
	assert.Equal(t, samples, pcm.Data)
}

func TestDecodeWAVDropsPartialFrame(t *testing.T) {
	// Three samples in a stereo file leave half a frame at the end.
	pcm, err := DecodeWAV(encodeWAV(44100, 2, 16, tone(3)))

	require.NoError(t, err)
	assert.Equal(t, tone(2), pcm.Data)
}

func TestDecodeWAVErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrInvalidWAV},
		{"not riff", []byte("OggS0000WAVEfmt "), ErrInvalidWAV},
		{"8-bit", encodeWAV(44100, 1, 8, []byte{1, 2, 3, 4}), ErrUnsupportedWAV},
		{"no data chunk", encodeWAV(44100, 1, 16, nil)[:36], ErrInvalidWAV},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeWAV(tt.data)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
