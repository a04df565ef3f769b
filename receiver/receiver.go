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

// Package receiver feeds a stream of samples to a decoder bank and reports
// every decoded frame.
package receiver

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/bemasher/subghz/protocol"
	"github.com/bemasher/subghz/pulse"
)

// A Receiver owns a registry. Only the goroutine running Run touches it.
type Receiver struct {
	registry *protocol.Registry
	enc      Encoder
	metrics  *Metrics
	log      logrus.FieldLogger

	// Decoders fed alongside the registry, for instance a RAW recorder.
	Taps []pulse.Sink

	Filters   FilterChain
	Frequency uint32

	// Time source for LogMessage, replaced in tests.
	Now func() time.Time

	found  []protocol.Command
	retune chan uint32
}

// New returns a receiver reporting frames to enc. Metrics may be nil.
func New(registry *protocol.Registry, enc Encoder, metrics *Metrics, log logrus.FieldLogger) *Receiver {
	r := &Receiver{
		registry: registry,
		enc:      enc,
		metrics:  metrics,
		log:      log,
		Now:      time.Now,
		retune:   make(chan uint32, 1),
	}

	registry.SetCallback(func(d protocol.Decoder) {
		r.found = append(r.found, d.Command())
	})

	return r
}

// Retune asks Run to reset every decoder and report frames against hz from
// now on. It blocks until Run picks the request up or ctx is done.
func (r *Receiver) Retune(ctx context.Context, hz uint32) error {
	select {
	case r.retune <- hz:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run dispatches samples in order until the channel is closed or ctx is
// done. It returns the first output error.
func (r *Receiver) Run(ctx context.Context, samples <-chan pulse.Sample) error {
	for {
		// Pending retunes take priority over samples.
		select {
		case hz := <-r.retune:
			r.reset(hz)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			return nil
		case hz := <-r.retune:
			r.reset(hz)
		case s, ok := <-samples:
			if !ok {
				return nil
			}
			if err := r.Feed(s); err != nil {
				return err
			}
		}
	}
}

// Feed dispatches one sample and reports the frames it completed.
func (r *Receiver) Feed(s pulse.Sample) error {
	r.registry.Dispatch(s.Level, s.Duration)
	for _, tap := range r.Taps {
		tap.Parse(s.Level, s.Duration)
	}
	if r.metrics != nil {
		r.metrics.samples.Inc()
	}

	found := r.found
	r.found = r.found[:0]

	for _, cmd := range found {
		if err := r.report(cmd); err != nil {
			return err
		}
	}
	return nil
}

func (r *Receiver) report(cmd protocol.Command) error {
	if !r.Filters.Match(cmd) {
		if r.metrics != nil {
			r.metrics.dropped.WithLabelValues(cmd.Protocol).Inc()
		}
		return nil
	}
	if r.metrics != nil {
		r.metrics.frames.WithLabelValues(cmd.Protocol).Inc()
	}

	msg := LogMessage{
		Time:      r.Now(),
		Frequency: r.Frequency,
		Command:   cmd,
	}
	return errors.Wrap(r.enc.Encode(msg), "encode")
}

func (r *Receiver) reset(hz uint32) {
	r.registry.ResetAll()
	r.found = r.found[:0]
	r.Frequency = hz
	if r.metrics != nil {
		r.metrics.resets.Inc()
	}
	if r.log != nil {
		r.log.WithField("frequency", hz).Info("retuned")
	}
}
