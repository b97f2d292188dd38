// Package sound generates the buzzer tone.
package sound

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/ezrec/chip8/emulator"
)

const (
	DEFAULT_SAMPLE_RATE = 44100
	DEFAULT_FREQUENCY   = 440
	DEFAULT_VOLUME      = 0x2000
)

const (
	CHANNELS    = 2
	SAMPLE_SIZE = 2
	FRAME_SIZE  = CHANNELS * SAMPLE_SIZE
)

// square is a square wave oscillator.
type square struct {
	SampleRate int
	Frequency  int
	Volume     int16

	phase int
}

// next returns the next sample.
func (sq *square) next() (sample int16) {
	period := max(2, sq.SampleRate/max(1, sq.Frequency))
	sample = sq.Volume
	if sq.phase >= period/2 {
		sample = -sq.Volume
	}
	sq.phase = (sq.phase + 1) % period
	return
}

// Tone is an endless stream of 16-bit little-endian stereo samples, a square
// wave while the buzzer is on and silence otherwise.
type Tone struct {
	square
	on atomic.Bool
}

var _ emulator.Beeper = (*Tone)(nil)

// NewTone returns a silent tone at the default pitch.
func NewTone(sampleRate int) *Tone {
	return &Tone{
		square: square{
			SampleRate: sampleRate,
			Frequency:  DEFAULT_FREQUENCY,
			Volume:     DEFAULT_VOLUME,
		},
	}
}

// Beep turns the buzzer on or off.
func (tone *Tone) Beep(on bool) {
	tone.on.Store(on)
}

// On returns the buzzer state.
func (tone *Tone) On() bool {
	return tone.on.Load()
}

// Read fills buf with whole frames. It never fails.
func (tone *Tone) Read(buf []byte) (n int, err error) {
	on := tone.on.Load()
	for n = 0; n+FRAME_SIZE <= len(buf); n += FRAME_SIZE {
		var sample int16
		if on {
			sample = tone.next()
		} else {
			tone.phase = 0
		}
		binary.LittleEndian.PutUint16(buf[n:], uint16(sample))
		binary.LittleEndian.PutUint16(buf[n+SAMPLE_SIZE:], uint16(sample))
	}
	return
}
