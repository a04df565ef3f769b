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

package protocol

import (
	"io"

	"github.com/pkg/errors"

	"github.com/bemasher/subghz/keystore"
)

// Environment carries the shared, read-only resources decoders and encoders
// are constructed with.
type Environment struct {
	Keystore       *keystore.Keystore
	NiceFlorSTable io.ReaderAt
	CameAtomoTable io.ReaderAt
}

// Entries returns the manufacturer keys, or nil when no keystore is loaded.
func (env *Environment) Entries() []keystore.Entry {
	if env == nil || env.Keystore == nil {
		return nil
	}
	return env.Keystore.Entries
}

// Registry holds one decoder per protocol and fans every sample out to all
// of them. It is owned by a single goroutine.
type Registry struct {
	decoders []Decoder
	byName   map[string]Decoder
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Decoder)}
}

// Register adds d. Names must be unique.
func (r *Registry) Register(d Decoder) error {
	if d == nil {
		return errors.New("protocol: nil decoder")
	}
	if _, dup := r.byName[d.Name()]; dup {
		return errors.Wrapf(ErrDuplicate, "%q", d.Name())
	}

	r.byName[d.Name()] = d
	r.decoders = append(r.decoders, d)
	return nil
}

// Dispatch feeds one sample to every decoder in registration order.
func (r *Registry) Dispatch(level bool, duration uint32) {
	for _, d := range r.decoders {
		d.Parse(level, duration)
	}
}

// Parse makes a Registry usable wherever a single decoder is.
func (r *Registry) Parse(level bool, duration uint32) {
	r.Dispatch(level, duration)
}

// Find looks a decoder up by protocol name.
func (r *Registry) Find(name string) (Decoder, error) {
	if d, ok := r.byName[name]; ok {
		return d, nil
	}
	return nil, errors.Wrapf(ErrNotFound, "%q", name)
}

// ResetAll resets every decoder, for instance after a frequency change.
func (r *Registry) ResetAll() {
	for _, d := range r.decoders {
		d.Reset()
	}
}

// SetCallback installs cb on every decoder.
func (r *Registry) SetCallback(cb Callback) {
	for _, d := range r.decoders {
		d.SetCallback(cb)
	}
}

func (r *Registry) Names() (names []string) {
	for _, d := range r.decoders {
		names = append(names, d.Name())
	}
	return names
}

func (r *Registry) Decoders() []Decoder {
	return append([]Decoder(nil), r.decoders...)
}

func (r *Registry) Len() int {
	return len(r.decoders)
}
