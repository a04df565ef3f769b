// SUBGHZ - A decoder for sub-1GHz remote control protocols.
// Copyright (C) 2015 Douglas Hall
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/bemasher/rtltcp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/bemasher/subghz/pulse"
)

const (
	DefaultCenterFreq = 433920000
	DefaultSampleRate = 1024000

	// 16384 IQ pairs, 16ms at the default sample rate.
	BlockSize = 32768

	// Difference between MagLUT power in dBFS and dBm at the antenna, close
	// enough for picking the strongest of several frequencies.
	RSSIOffset = -60
)

// SDR wraps an rtl_tcp connection. Its rtltcp flags must be registered
// before the command line is parsed.
type SDR struct {
	rtltcp.SDR
	CenterFreq uint32
	SampleRate uint32
}

// Open connects to rtl_tcp and applies every rtltcp flag the user gave.
func (sdr *SDR) Open(log logrus.FieldLogger) error {
	sdr.CenterFreq = DefaultCenterFreq
	sdr.SampleRate = DefaultSampleRate

	if err := sdr.Connect(nil); err != nil {
		return err
	}

	gainFlagSet := false
	var err error
	pflag.Visit(func(f *pflag.Flag) {
		if err != nil {
			return
		}

		switch f.Name {
		case "centerfreq":
			sdr.CenterFreq = uint32(sdr.Flags.CenterFreq)
		case "samplerate":
			sdr.SampleRate = uint32(sdr.Flags.SampleRate)
		case "tunergainmode":
			gainFlagSet = true
			err = sdr.SetGainMode(sdr.Flags.TunerGainMode)
		case "tunergain":
			gainFlagSet = true
			err = sdr.SetGain(uint32(sdr.Flags.TunerGain * 10.0))
		case "gainbyindex":
			gainFlagSet = true
			err = sdr.SetGainByIndex(uint32(sdr.Flags.GainByIndex))
		case "agcmode":
			gainFlagSet = true
			err = sdr.SetAGCMode(sdr.Flags.AgcMode)
		case "freqcorrection":
			err = sdr.SetFreqCorrection(uint32(sdr.Flags.FreqCorrection))
		case "testmode":
			err = sdr.SetTestMode(sdr.Flags.TestMode)
		case "directsampling":
			err = sdr.SetDirectSampling(sdr.Flags.DirectSampling)
		case "offsettuning":
			err = sdr.SetOffsetTuning(sdr.Flags.OffsetTuning)
		case "rtlxtalfreq":
			err = sdr.SetRTLXtalFreq(uint32(sdr.Flags.RtlXtalFreq))
		case "tunerxtalfreq":
			err = sdr.SetTunerXtalFreq(uint32(sdr.Flags.TunerXtalFreq))
		}
		err = errors.Wrap(err, f.Name)
	})

	if err == nil {
		err = sdr.SetCenterFreq(sdr.CenterFreq)
	}
	if err == nil {
		err = sdr.SetSampleRate(sdr.SampleRate)
	}
	if err == nil && !gainFlagSet {
		err = sdr.SetGainMode(true)
	}
	if err != nil {
		sdr.Close()
		return err
	}

	log.WithFields(logrus.Fields{
		"tuner":      sdr.Info.Tuner,
		"gainCount":  sdr.Info.GainCount,
		"centerFreq": sdr.CenterFreq,
		"sampleRate": sdr.SampleRate,
	}).Info("connected to rtl_tcp")

	return nil
}

// Stream slices IQ blocks into samples and sends them to out until ctx is
// done or the connection fails. It closes out before returning.
func (sdr *SDR) Stream(ctx context.Context, slicer *pulse.Slicer, out chan<- pulse.Sample, log logrus.FieldLogger) {
	defer close(out)

	block := make([]byte, BlockSize)
	var samples []pulse.Sample

	for {
		_, err := io.ReadFull(sdr, block)
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			log.WithError(err).Warn("encountered eof")
			return
		}

		if opErr, ok := err.(*net.OpError); ok {
			// If temporary, keep reading.
			if opErr.Temporary() {
				log.WithError(opErr).Warn("temporary read error")
				continue
			}
			log.WithError(opErr).Error("read error")
			return
		}
		if err != nil {
			log.WithError(err).Error("read error")
			return
		}

		samples = slicer.Slice(block, samples[:0])
		for _, s := range samples {
			select {
			case out <- s:
			case <-ctx.Done():
				return
			}
		}
	}
}

// rssiReader measures block power on an rtl_tcp connection for the
// analyzer.
type rssiReader struct {
	sdr   *SDR
	lut   pulse.MagLUT
	block []byte
}

func newRSSIReader(sdr *SDR) *rssiReader {
	return &rssiReader{
		sdr:   sdr,
		lut:   pulse.NewMagLUT(),
		block: make([]byte, BlockSize),
	}
}

func (r *rssiReader) SetFrequency(ctx context.Context, hz uint32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.sdr.SetCenterFreq(hz)
}

// RSSI discards the block in flight while the tuner settles and measures
// the next.
func (r *rssiReader) RSSI(ctx context.Context) (float32, error) {
	if deadline, ok := ctx.Deadline(); ok {
		r.sdr.SetReadDeadline(deadline)
		defer r.sdr.SetReadDeadline(time.Time{})
	}

	for i := 0; i < 2; i++ {
		if _, err := io.ReadFull(r.sdr, r.block); err != nil {
			return 0, errors.Wrap(err, "rssi")
		}
	}

	return float32(r.lut.Power(r.block)) + RSSIOffset, nil
}
