package render

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// wavHeader is the canonical 44-byte RIFF/WAVE header for PCM data.
type wavHeader struct {
	ChunkID       [4]byte
	ChunkSize     uint32
	Format        [4]byte
	Subchunk1ID   [4]byte
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte
	Subchunk2Size uint32
}

const (
	pcmFormat     = 1
	bitsPerSample = 16
)

// ErrNotWAV is returned by ReadWAV for input that is not mono 16-bit PCM.
var ErrNotWAV = errors.New("not a mono 16-bit PCM WAV stream")

// WriteWAV writes wf as a mono 16-bit little-endian PCM WAV stream.
func WriteWAV(w io.Writer, wf Waveform) error {
	if wf.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", wf.SampleRate)
	}
	dataSize := uint32(len(wf.Samples) * 2)
	h := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   pcmFormat,
		NumChannels:   1,
		SampleRate:    uint32(wf.SampleRate),
		ByteRate:      uint32(wf.SampleRate) * 2,
		BlockAlign:    2,
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}
	if err := binary.Write(w, binary.LittleEndian, h); err != nil {
		return fmt.Errorf("failed to write wav header: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, wf.Samples); err != nil {
		return fmt.Errorf("failed to write wav samples: %w", err)
	}
	return nil
}

// EncodeWAV returns wf as WAV bytes.
func EncodeWAV(wf Waveform) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(44 + 2*len(wf.Samples))
	if err := WriteWAV(&buf, wf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadWAV parses a stream written by WriteWAV. Only the canonical 44-byte
// header layout is understood.
func ReadWAV(r io.Reader) (Waveform, error) {
	var h wavHeader
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return Waveform{}, fmt.Errorf("failed to read wav header: %w", err)
	}
	if string(h.ChunkID[:]) != "RIFF" || string(h.Format[:]) != "WAVE" ||
		string(h.Subchunk1ID[:]) != "fmt " || string(h.Subchunk2ID[:]) != "data" {
		return Waveform{}, ErrNotWAV
	}
	if h.AudioFormat != pcmFormat || h.NumChannels != 1 || h.BitsPerSample != bitsPerSample {
		return Waveform{}, ErrNotWAV
	}
	// The header's size is only trusted as an upper bound.
	data, err := io.ReadAll(io.LimitReader(r, int64(h.Subchunk2Size)))
	if err != nil {
		return Waveform{}, fmt.Errorf("failed to read wav samples: %w", err)
	}
	if len(data) != int(h.Subchunk2Size) {
		return Waveform{}, fmt.Errorf("failed to read wav samples: %w", io.ErrUnexpectedEOF)
	}
	samples := make([]int16, len(data)/2)
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, samples); err != nil {
		return Waveform{}, fmt.Errorf("failed to read wav samples: %w", err)
	}
	return Waveform{SampleRate: int(h.SampleRate), Samples: samples}, nil
}

// WriteFile writes wf to path as a WAV file.
func WriteFile(path string, wf Waveform) error {
	data, err := EncodeWAV(wf)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
