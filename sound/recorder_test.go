package sound

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	assert := assert.New(t)

	rec := NewRecorder(DEFAULT_SAMPLE_RATE)
	assert.Equal(0, rec.Len())

	rec.Beep(true)
	rec.Beep(true)
	rec.Beep(false)

	// 735 samples per 1/60s tick.
	assert.Equal(3*735, rec.Len())
	assert.Equal(50*time.Millisecond, rec.Duration())

	path := filepath.Join(t.TempDir(), "beep.wav")
	file, err := os.Create(path)
	assert.NoError(err)
	err = rec.WriteWav(file)
	assert.NoError(err)
	assert.NoError(file.Close())

	file, err = os.Open(path)
	assert.NoError(err)
	defer file.Close()

	dec := wav.NewDecoder(file)
	assert.True(dec.IsValidFile())

	buf, err := dec.FullPCMBuffer()
	assert.NoError(err)
	assert.Equal(DEFAULT_SAMPLE_RATE, buf.Format.SampleRate)
	assert.Equal(1, buf.Format.NumChannels)
	assert.Len(buf.Data, 3*735)

	assert.Equal(DEFAULT_VOLUME, buf.Data[0])
	assert.Equal(-DEFAULT_VOLUME, buf.Data[50])
	for _, sample := range buf.Data[2*735:] {
		assert.Equal(0, sample)
	}
}
