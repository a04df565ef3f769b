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
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/bemasher/subghz/protocol"
)

const (
	TimeFormat = "2006-01-02T15:04:05.000"
)

// A LogMessage is a decoded frame as it is reported to the user.
type LogMessage struct {
	Time      time.Time
	Frequency uint32
	protocol.Command
}

func (msg LogMessage) String() string {
	return fmt.Sprintf("{Time:%s Frequency:%d %s:%s}",
		msg.Time.Format(TimeFormat), msg.Frequency, msg.Protocol, msg.Command,
	)
}

func (msg LogMessage) Record() (r []string) {
	r = append(r, msg.Time.Format(time.RFC3339Nano))
	r = append(r, strconv.FormatUint(uint64(msg.Frequency), 10))
	r = append(r, msg.Command.Record()...)
	return r
}

func (msg LogMessage) Header() []string {
	return []string{
		"Time", "Frequency", "Protocol", "Type", "Bits", "Key",
		"Serial", "Btn", "Cnt", "Manufacturer", "Note",
	}
}

type FilterChain []MessageFilter

func (fc *FilterChain) Add(filter MessageFilter) {
	*fc = append(*fc, filter)
}

func (fc FilterChain) Match(cmd protocol.Command) bool {
	if len(fc) == 0 {
		return true
	}

	for _, filter := range fc {
		if !filter.Filter(cmd) {
			return false
		}
	}

	return true
}

type MessageFilter interface {
	Filter(protocol.Command) bool
}

// UniqueFilter passes a frame only when it differs from the previous frame
// of the same protocol and serial.
type UniqueFilter map[string]string

func NewUniqueFilter() UniqueFilter {
	return make(UniqueFilter)
}

func (uf UniqueFilter) Filter(cmd protocol.Command) bool {
	id := cmd.Protocol + ":" + strconv.FormatUint(uint64(cmd.Serial), 16)
	key := cmd.Key() + ":" + strconv.FormatUint(cmd.Data2, 16)

	if val, ok := uf[id]; ok && val == key {
		return false
	}

	uf[id] = key
	return true
}

// ProtocolFilter passes frames of the listed protocols. It is a flag.Value
// taking a comma separated list of names.
type ProtocolFilter map[string]bool

func (pf ProtocolFilter) String() string {
	var names []string
	for name := range pf {
		names = append(names, name)
	}
	return strings.Join(names, ",")
}

func (pf ProtocolFilter) Set(value string) error {
	for _, name := range strings.Split(value, ",") {
		if name = strings.TrimSpace(name); name != "" {
			pf[name] = true
		}
	}
	return nil
}

func (pf ProtocolFilter) Type() string {
	return "protocols"
}

func (pf ProtocolFilter) Filter(cmd protocol.Command) bool {
	return pf[cmd.Protocol]
}

// JSON and csv encoders implement this interface so we can simplify log
// output formatting.
type Encoder interface {
	Encode(interface{}) error
}

type PlainEncoder struct {
	W io.Writer
}

func (pe PlainEncoder) Encode(msg interface{}) (err error) {
	_, err = fmt.Fprintln(pe.W, msg)
	return
}
