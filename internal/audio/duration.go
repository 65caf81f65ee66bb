package audio

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/hajimehoshi/go-mp3"
)

// decodedBytesPerSample is fixed by go-mp3: it always decodes to 16-bit stereo.
const decodedBytesPerSample = 4

// MP3Duration returns the playback length of an MP3 payload by scanning its frames.
func MP3Duration(data []byte) (time.Duration, error) {
	if len(data) == 0 {
		return 0, errors.New("empty mp3 payload")
	}

	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("decode mp3: %w", err)
	}

	length := dec.Length()
	if length <= 0 || dec.SampleRate() <= 0 {
		return 0, errors.New("mp3 length unknown")
	}

	samples := length / decodedBytesPerSample
	return time.Duration(samples) * time.Second / time.Duration(dec.SampleRate()), nil
}

// EstimateDuration is MP3Duration with a per-character fallback for payloads that
// cannot be decoded.
func EstimateDuration(data []byte, text string, perChar time.Duration) time.Duration {
	if d, err := MP3Duration(data); err == nil {
		return d
	}
	return time.Duration(len(text)) * perChar
}
