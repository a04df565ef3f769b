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

// Package protocols knows every protocol this module implements and builds
// decoders and encoders for them by name.
package protocols

import (
	"github.com/pkg/errors"

	"github.com/bemasher/subghz/protocol"
	"github.com/bemasher/subghz/protocol/came"
	"github.com/bemasher/subghz/protocol/cameatomo"
	"github.com/bemasher/subghz/protocol/cametwee"
	"github.com/bemasher/subghz/protocol/faacslh"
	"github.com/bemasher/subghz/protocol/gatetx"
	"github.com/bemasher/subghz/protocol/hormann"
	"github.com/bemasher/subghz/protocol/keeloq"
	"github.com/bemasher/subghz/protocol/kia"
	"github.com/bemasher/subghz/protocol/neroradio"
	"github.com/bemasher/subghz/protocol/nerosketch"
	"github.com/bemasher/subghz/protocol/niceflo"
	"github.com/bemasher/subghz/protocol/niceflors"
	"github.com/bemasher/subghz/protocol/princeton"
	"github.com/bemasher/subghz/protocol/scherkhan"
	"github.com/bemasher/subghz/protocol/somfy"
	"github.com/bemasher/subghz/protocol/starline"
	"github.com/bemasher/subghz/raw"
)

type (
	NewDecoderFunc func(*protocol.Environment) protocol.Decoder
	NewEncoderFunc func(*protocol.Environment) protocol.Encoder
)

type entry struct {
	name       string
	newDecoder NewDecoderFunc
	newEncoder NewEncoderFunc
}

// Registration order is dispatch order.
var protocols = []entry{
	{princeton.Name,
		func(env *protocol.Environment) protocol.Decoder { return princeton.NewDecoder(env) },
		func(env *protocol.Environment) protocol.Encoder { return princeton.NewEncoder(env) }},
	{keeloq.Name,
		func(env *protocol.Environment) protocol.Decoder { return keeloq.NewDecoder(env) },
		func(env *protocol.Environment) protocol.Encoder { return keeloq.NewEncoder(env) }},
	{starline.Name,
		func(env *protocol.Environment) protocol.Decoder { return starline.NewDecoder(env) },
		func(env *protocol.Environment) protocol.Encoder { return starline.NewEncoder(env) }},
	{niceflo.Name,
		func(env *protocol.Environment) protocol.Decoder { return niceflo.NewDecoder(env) },
		func(env *protocol.Environment) protocol.Encoder { return niceflo.NewEncoder(env) }},
	{came.Name,
		func(env *protocol.Environment) protocol.Decoder { return came.NewDecoder(env) },
		func(env *protocol.Environment) protocol.Encoder { return came.NewEncoder(env) }},
	{cametwee.Name,
		func(env *protocol.Environment) protocol.Decoder { return cametwee.NewDecoder(env) },
		func(env *protocol.Environment) protocol.Encoder { return cametwee.NewEncoder(env) }},
	{cameatomo.Name,
		func(env *protocol.Environment) protocol.Decoder { return cameatomo.NewDecoder(env) },
		func(env *protocol.Environment) protocol.Encoder { return cameatomo.NewEncoder(env) }},
	{niceflors.Name,
		func(env *protocol.Environment) protocol.Decoder { return niceflors.NewDecoder(env) },
		func(env *protocol.Environment) protocol.Encoder { return niceflors.NewEncoder(env) }},
	{faacslh.Name,
		func(env *protocol.Environment) protocol.Decoder { return faacslh.NewDecoder(env) },
		func(env *protocol.Environment) protocol.Encoder { return faacslh.NewEncoder(env) }},
	{gatetx.Name,
		func(env *protocol.Environment) protocol.Decoder { return gatetx.NewDecoder(env) },
		func(env *protocol.Environment) protocol.Encoder { return gatetx.NewEncoder(env) }},
	{hormann.Name,
		func(env *protocol.Environment) protocol.Decoder { return hormann.NewDecoder(env) },
		func(env *protocol.Environment) protocol.Encoder { return hormann.NewEncoder(env) }},
	{nerosketch.Name,
		func(env *protocol.Environment) protocol.Decoder { return nerosketch.NewDecoder(env) },
		func(env *protocol.Environment) protocol.Encoder { return nerosketch.NewEncoder(env) }},
	{neroradio.Name,
		func(env *protocol.Environment) protocol.Decoder { return neroradio.NewDecoder(env) },
		func(env *protocol.Environment) protocol.Encoder { return neroradio.NewEncoder(env) }},
	{somfy.TelisName,
		func(env *protocol.Environment) protocol.Decoder { return somfy.NewTelisDecoder(env) },
		func(env *protocol.Environment) protocol.Encoder { return somfy.NewTelisEncoder(env) }},
	{somfy.KeytisName,
		func(env *protocol.Environment) protocol.Decoder { return somfy.NewKeytisDecoder(env) },
		func(env *protocol.Environment) protocol.Encoder { return somfy.NewKeytisEncoder(env) }},
	{scherkhan.Name,
		func(env *protocol.Environment) protocol.Decoder { return scherkhan.NewDecoder(env) },
		nil},
	{kia.Name,
		func(env *protocol.Environment) protocol.Decoder { return kia.NewDecoder(env) },
		nil},
}

// Names lists every protocol in dispatch order.
func Names() (names []string) {
	for _, p := range protocols {
		names = append(names, p.name)
	}
	return names
}

func lookup(name string) (entry, error) {
	for _, p := range protocols {
		if p.name == name {
			return p, nil
		}
	}
	return entry{}, errors.Wrapf(protocol.ErrNotFound, "%q", name)
}

// NewRegistry returns a registry holding a decoder for every protocol.
// RAW is not included, it records rather than decodes.
func NewRegistry(env *protocol.Environment) *protocol.Registry {
	r, err := NewRegistryOf(env, Names()...)
	if err != nil {
		// Names are unique and known.
		panic(err)
	}
	return r
}

// NewRegistryOf returns a registry holding decoders for the named protocols.
func NewRegistryOf(env *protocol.Environment, names ...string) (*protocol.Registry, error) {
	r := protocol.NewRegistry()
	for _, name := range names {
		d, err := NewDecoder(name, env)
		if err != nil {
			return nil, err
		}
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func NewDecoder(name string, env *protocol.Environment) (protocol.Decoder, error) {
	p, err := lookup(name)
	if err != nil {
		return nil, err
	}
	return p.newDecoder(env), nil
}

// NewEncoder builds an encoder by name. RAW replays recorded samples.
// Receive only protocols return protocol.ErrNotFound.
func NewEncoder(name string, env *protocol.Environment) (protocol.Encoder, error) {
	if name == raw.Name {
		return raw.NewEncoder(), nil
	}

	p, err := lookup(name)
	if err != nil {
		return nil, err
	}
	if p.newEncoder == nil {
		return nil, errors.Wrapf(protocol.ErrNotFound, "%q has no encoder", name)
	}
	return p.newEncoder(env), nil
}
