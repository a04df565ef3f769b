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

package receiver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts what a receiver has seen.
type Metrics struct {
	samples prometheus.Counter
	frames  *prometheus.CounterVec
	dropped *prometheus.CounterVec
	resets  prometheus.Counter
}

// NewMetrics registers the receiver's collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		samples: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "subghz",
			Name:      "samples_total",
			Help:      "Duration/level samples dispatched to the decoders",
		}),
		frames: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "subghz",
			Name:      "frames_total",
			Help:      "Frames decoded, by protocol",
		}, []string{"protocol"}),
		dropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "subghz",
			Name:      "frames_filtered_total",
			Help:      "Frames rejected by the filter chain, by protocol",
		}, []string{"protocol"}),
		resets: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "subghz",
			Name:      "resets_total",
			Help:      "Decoder bank resets caused by retuning",
		}),
	}
}
