package analyzer

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRadio reports a signal falling off by 1 dB per 10 kHz from peak.
type fakeRadio struct {
	peak  uint32
	level float32

	tuned []uint32
	fail  error
}

func (r *fakeRadio) SetFrequency(ctx context.Context, hz uint32) error {
	r.tuned = append(r.tuned, hz)
	return r.fail
}

func (r *fakeRadio) RSSI(ctx context.Context) (float32, error) {
	hz := r.tuned[len(r.tuned)-1]
	diff := hz - r.peak
	if hz < r.peak {
		diff = r.peak - hz
	}
	return r.level - float32(diff)/10000, nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Dwell = 0
	return cfg
}

func TestValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := testConfig()
	cfg.CoarseFrequencies = nil
	assert.True(t, errors.Is(cfg.Validate(), ErrNoFrequencies))

	cfg.CoarseFrequencies = []uint32{433920000, 500000000}
	assert.True(t, errors.Is(cfg.Validate(), ErrFrequencyOutOfRange))

	_, err := New(&fakeRadio{}, cfg, nil)
	assert.Error(t, err)
}

func TestScanDetects(t *testing.T) {
	radio := &fakeRadio{peak: 433940000, level: -40}
	a, err := New(radio, testConfig(), nil)
	require.NoError(t, err)

	res, err := a.ScanOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Detected)
	assert.Equal(t, uint32(433940000), res.Frequency)
	assert.Equal(t, float32(-40), res.RSSI)

	// Coarse list plus a fine sweep of 31 steps.
	assert.Len(t, radio.tuned, len(DefaultFrequencies)+31)
}

func TestScanBelowThreshold(t *testing.T) {
	radio := &fakeRadio{peak: 433920000, level: -100}
	a, err := New(radio, testConfig(), nil)
	require.NoError(t, err)

	res, err := a.ScanOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Detected)
	assert.Equal(t, uint32(433920000), res.Frequency)
	assert.Len(t, radio.tuned, len(DefaultFrequencies))
}

func TestFineStaysInBand(t *testing.T) {
	a, err := New(&fakeRadio{}, testConfig(), nil)
	require.NoError(t, err)

	freqs := a.fine(928000000)
	require.NotEmpty(t, freqs)
	assert.Equal(t, uint32(927700000), freqs[0])
	assert.Equal(t, uint32(928000000), freqs[len(freqs)-1])
}

func TestRadioError(t *testing.T) {
	fail := errors.New("tuner")
	a, err := New(&fakeRadio{fail: fail}, testConfig(), nil)
	require.NoError(t, err)

	_, err = a.ScanOnce(context.Background())
	assert.Equal(t, fail, errors.Cause(err))

	assert.Equal(t, fail, errors.Cause(a.Run(context.Background(), make(chan Result))))
}

func TestRun(t *testing.T) {
	a, err := New(&fakeRadio{peak: 315000000, level: -50}, testConfig(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan Result)
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx, out) }()

	for i := 0; i < 3; i++ {
		res := <-out
		assert.Equal(t, uint32(315000000), res.Frequency)
	}
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("run did not stop")
	}
}

func TestDwellCancel(t *testing.T) {
	cfg := testConfig()
	cfg.Dwell = time.Hour
	a, err := New(&fakeRadio{}, cfg, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = a.ScanOnce(ctx)
	assert.Equal(t, context.Canceled, errors.Cause(err))
}
