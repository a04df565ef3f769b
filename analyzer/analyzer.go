// Package analyzer finds the frequency a nearby remote is transmitting on.
// A coarse pass visits a list of common frequencies; when the strongest of
// them is above the threshold a fine pass sweeps around it.
package analyzer

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	ErrNoFrequencies       = errors.New("analyzer: no coarse frequencies")
	ErrFrequencyOutOfRange = errors.New("analyzer: frequency out of range")
)

// An RSSIReader is a receiver that can be tuned and report signal strength
// in dBm.
type RSSIReader interface {
	SetFrequency(ctx context.Context, hz uint32) error
	RSSI(ctx context.Context) (float32, error)
}

// A Band is an inclusive frequency range the radio can receive.
type Band struct {
	Min, Max uint32
}

func (b Band) Contains(hz uint32) bool {
	return hz >= b.Min && hz <= b.Max
}

// Bands supported by CC1101 class transceivers.
var Bands = []Band{
	{300000000, 348000000},
	{387000000, 464000000},
	{779000000, 928000000},
}

// Supported reports whether hz lies in one of Bands.
func Supported(hz uint32) bool {
	for _, b := range Bands {
		if b.Contains(hz) {
			return true
		}
	}
	return false
}

// DefaultFrequencies is the coarse scan list.
var DefaultFrequencies = []uint32{
	300000000, 302757000, 303875000, 304250000, 307000000, 307500000,
	307800000, 309000000, 310000000, 312000000, 312100000, 313000000,
	313850000, 314000000, 314350000, 315000000, 318000000, 330000000,
	345000000, 348000000, 387000000, 390000000, 418000000, 433075000,
	433220000, 433420000, 433657070, 433889000, 433920000, 434075000,
	434176948, 434390000, 434420000, 434775000, 438900000, 440175000,
	464000000, 779000000, 868350000, 868400000, 868800000, 868950000,
	906400000, 915000000, 925000000, 928000000,
}

type Config struct {
	CoarseFrequencies []uint32      `yaml:"frequencies"`
	Threshold         float32       `yaml:"threshold"`
	FineRange         uint32        `yaml:"fine_range"`
	FineStep          uint32        `yaml:"fine_step"`
	Dwell             time.Duration `yaml:"dwell"`
}

func DefaultConfig() Config {
	return Config{
		CoarseFrequencies: DefaultFrequencies,
		Threshold:         -93,
		FineRange:         300000,
		FineStep:          20000,
		Dwell:             2 * time.Millisecond,
	}
}

func (cfg Config) Validate() error {
	if len(cfg.CoarseFrequencies) == 0 {
		return ErrNoFrequencies
	}
	for _, hz := range cfg.CoarseFrequencies {
		if !Supported(hz) {
			return errors.Wrapf(ErrFrequencyOutOfRange, "%d", hz)
		}
	}
	if cfg.FineRange > 0 && cfg.FineStep == 0 {
		return errors.New("analyzer: fine step is zero")
	}
	return nil
}

// Result is the outcome of one scan. Frequency and RSSI always describe the
// strongest frequency visited; Detected is set when it reached the
// threshold.
type Result struct {
	Frequency uint32
	RSSI      float32
	Detected  bool
}

func (r Result) String() string {
	return fmt.Sprintf("{Frequency:%d.%03d RSSI:%0.1f Detected:%t}",
		r.Frequency/1000000, r.Frequency/1000%1000, r.RSSI, r.Detected,
	)
}

type Analyzer struct {
	cfg   Config
	radio RSSIReader
	log   logrus.FieldLogger
}

// New returns an analyzer driving radio. A nil logger discards output.
func New(radio RSSIReader, cfg Config, log logrus.FieldLogger) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		l := logrus.New()
		l.Out = io.Discard
		log = l
	}
	return &Analyzer{cfg: cfg, radio: radio, log: log}, nil
}

func (a *Analyzer) measure(ctx context.Context, hz uint32) (float32, error) {
	if err := a.radio.SetFrequency(ctx, hz); err != nil {
		return 0, errors.Wrapf(err, "tune %d", hz)
	}

	if a.cfg.Dwell > 0 {
		t := time.NewTimer(a.cfg.Dwell)
		select {
		case <-ctx.Done():
			t.Stop()
			return 0, ctx.Err()
		case <-t.C:
		}
	}

	rssi, err := a.radio.RSSI(ctx)
	return rssi, errors.Wrapf(err, "rssi %d", hz)
}

// strongest measures every frequency and returns the first with the highest
// RSSI.
func (a *Analyzer) strongest(ctx context.Context, freqs []uint32) (best Result, err error) {
	for idx, hz := range freqs {
		rssi, err := a.measure(ctx, hz)
		if err != nil {
			return best, err
		}
		if idx == 0 || rssi > best.RSSI {
			best = Result{Frequency: hz, RSSI: rssi}
		}
	}
	return best, nil
}

// fine lists the supported frequencies within FineRange of center.
func (a *Analyzer) fine(center uint32) (freqs []uint32) {
	if a.cfg.FineRange == 0 {
		return nil
	}

	lo := center - a.cfg.FineRange
	if a.cfg.FineRange > center {
		lo = 0
	}
	for hz := lo; hz <= center+a.cfg.FineRange; hz += a.cfg.FineStep {
		if Supported(hz) {
			freqs = append(freqs, hz)
		}
	}
	return freqs
}

// ScanOnce runs a coarse pass and, if it detected a signal, a fine pass.
func (a *Analyzer) ScanOnce(ctx context.Context) (Result, error) {
	coarse, err := a.strongest(ctx, a.cfg.CoarseFrequencies)
	if err != nil {
		return coarse, err
	}
	a.log.WithFields(logrus.Fields{"frequency": coarse.Frequency, "rssi": coarse.RSSI}).Debug("coarse")

	if coarse.RSSI < a.cfg.Threshold {
		return coarse, nil
	}

	res := coarse
	if freqs := a.fine(coarse.Frequency); len(freqs) > 0 {
		fine, err := a.strongest(ctx, freqs)
		if err != nil {
			return coarse, err
		}
		a.log.WithFields(logrus.Fields{"frequency": fine.Frequency, "rssi": fine.RSSI}).Debug("fine")
		if fine.RSSI >= coarse.RSSI {
			res = fine
		}
	}

	res.Detected = true
	return res, nil
}

// Run scans until ctx is done, sending every result to out. It returns nil
// once ctx is cancelled and any radio error otherwise.
func (a *Analyzer) Run(ctx context.Context, out chan<- Result) error {
	for {
		res, err := a.ScanOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return err
		}

		select {
		case out <- res:
		case <-ctx.Done():
			return nil
		}
	}
}
