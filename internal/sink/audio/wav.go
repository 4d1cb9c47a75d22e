package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

type wavFormat struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// parseWAV walks the RIFF chunks and returns the format plus the raw
// PCM payload of the data chunk.
func parseWAV(data []byte) (wavFormat, []byte, error) {
	r := bytes.NewReader(data)

	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return wavFormat{}, nil, err
	}
	if string(hdr[:]) != "RIFF" {
		return wavFormat{}, nil, errors.New("not a RIFF file")
	}
	if _, err := r.Seek(4, io.SeekCurrent); err != nil {
		return wavFormat{}, nil, err
	}
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return wavFormat{}, nil, err
	}
	if string(hdr[:]) != "WAVE" {
		return wavFormat{}, nil, errors.New("not a WAVE file")
	}

	var format wavFormat
	haveFmt := false
	for {
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return wavFormat{}, nil, errors.New("no data chunk")
			}
			return wavFormat{}, nil, err
		}
		var size uint32
		if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
			return wavFormat{}, nil, err
		}

		switch string(hdr[:]) {
		case "fmt ":
			var f struct {
				AudioFormat   uint16
				NumChannels   uint16
				SampleRate    uint32
				ByteRate      uint32
				BlockAlign    uint16
				BitsPerSample uint16
			}
			if err := binary.Read(r, binary.LittleEndian, &f); err != nil {
				return wavFormat{}, nil, err
			}
			format = wavFormat{
				SampleRate: int(f.SampleRate),
				Channels:   int(f.NumChannels),
				BitDepth:   int(f.BitsPerSample),
			}
			haveFmt = true
			if extra := int64(size) - 16; extra > 0 {
				if _, err := r.Seek(extra, io.SeekCurrent); err != nil {
					return wavFormat{}, nil, err
				}
			}
		case "data":
			if !haveFmt {
				return wavFormat{}, nil, errors.New("data chunk before fmt chunk")
			}
			pcm := make([]byte, size)
			if _, err := io.ReadFull(r, pcm); err != nil {
				return wavFormat{}, nil, err
			}
			return format, pcm, nil
		default:
			if _, err := r.Seek(int64(size), io.SeekCurrent); err != nil {
				return wavFormat{}, nil, err
			}
		}
	}
}
