package sound

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/ezrec/chip8/emulator"
	"github.com/ezrec/chip8/translate"
)

var f = translate.From

var ErrWavEncode = errors.New(f("wav encoding failed"))

// Recorder captures the buzzer as mono audio, one timer tick per Beep.
type Recorder struct {
	mutex   sync.Mutex
	square  square
	samples []int
}

var _ emulator.Beeper = (*Recorder)(nil)

// NewRecorder returns an empty recording.
func NewRecorder(sampleRate int) *Recorder {
	return &Recorder{
		square: square{
			SampleRate: sampleRate,
			Frequency:  DEFAULT_FREQUENCY,
			Volume:     DEFAULT_VOLUME,
		},
	}
}

// Beep records one timer tick of tone or silence.
func (rec *Recorder) Beep(on bool) {
	rec.mutex.Lock()
	defer rec.mutex.Unlock()

	count := rec.square.SampleRate / emulator.TIMER_RATE
	for range count {
		sample := 0
		if on {
			sample = int(rec.square.next())
		} else {
			rec.square.phase = 0
		}
		rec.samples = append(rec.samples, sample)
	}
}

// Len returns the number of samples recorded.
func (rec *Recorder) Len() int {
	rec.mutex.Lock()
	defer rec.mutex.Unlock()

	return len(rec.samples)
}

// Duration returns the length of the recording.
func (rec *Recorder) Duration() time.Duration {
	return time.Duration(rec.Len()) * time.Second / time.Duration(rec.square.SampleRate)
}

// WriteWav encodes the recording as a 16-bit mono PCM WAV file.
func (rec *Recorder) WriteWav(ws io.WriteSeeker) (err error) {
	rec.mutex.Lock()
	defer rec.mutex.Unlock()

	rate := rec.square.SampleRate
	enc := wav.NewEncoder(ws, rate, 16, 1, 1)

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: rate},
		Data:           rec.samples,
		SourceBitDepth: 16,
	}

	err = enc.Write(buf)
	if err != nil {
		err = errors.Join(ErrWavEncode, err)
		return
	}

	err = enc.Close()
	if err != nil {
		err = errors.Join(ErrWavEncode, err)
		return
	}

	return
}
