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

// Package keeloq implements the KeeLoq block cipher, the key derivations
// used by rolling code remotes, and manufacturer key resolution against a
// keystore.
package keeloq

import (
	"fmt"

	"github.com/bemasher/subghz/keystore"
)

// Non-linear function lookup.
const nlf = 0x3A5C742E

const rounds = 528

func bit(x uint64, n uint) uint32 {
	return uint32(x>>n) & 1
}

func g5(x uint32, a, b, c, d, e uint) uint {
	return uint(bit(uint64(x), a) + bit(uint64(x), b)<<1 + bit(uint64(x), c)<<2 +
		bit(uint64(x), d)<<3 + bit(uint64(x), e)<<4)
}

// Encrypt enciphers a 32 bit block with a 64 bit key.
func Encrypt(data uint32, key uint64) uint32 {
	x := data
	for r := uint(0); r < rounds; r++ {
		x = x>>1 ^ (bit(uint64(x), 0)^bit(uint64(x), 16)^
			bit(key, r&63)^bit(nlf, g5(x, 1, 9, 20, 26, 31)))<<31
	}
	return x
}

// Decrypt is the inverse of Encrypt.
func Decrypt(data uint32, key uint64) uint32 {
	x := data
	for r := uint(0); r < rounds; r++ {
		x = x<<1 ^ bit(uint64(x), 31) ^ bit(uint64(x), 15) ^
			bit(key, (15-r)&63) ^ bit(nlf, g5(x, 0, 8, 19, 25, 30))
	}
	return x
}

// NormalLearning derives a device key from the low 28 bits of the fixed
// part (the serial number) and a manufacturer key.
func NormalLearning(fix uint32, key uint64) uint64 {
	fix &= 0x0FFFFFFF
	k1 := Decrypt(fix|0x20000000, key)
	k2 := Decrypt(fix|0x60000000, key)
	return uint64(k2)<<32 | uint64(k1)
}

// SecureLearning derives a device key from the serial and the seed the
// remote transmits in its learning frame.
func SecureLearning(fix, seed uint32, key uint64) uint64 {
	k1 := Decrypt(fix&0x0FFFFFFF, key)
	k2 := Decrypt(seed, key)
	return uint64(k1)<<32 | uint64(k2)
}

// MagicXorType1Learning derives a device key by XORing the serial into a
// manufacturer constant.
func MagicXorType1Learning(fix uint32, xor uint64) uint64 {
	fix &= 0x0FFFFFFF
	return (uint64(fix)<<32 | uint64(fix)) ^ xor
}

// FAACLearning derives the FAAC SLH device key from its seed.
func FAACLearning(seed uint32, key uint64) uint64 {
	hs := seed >> 16
	const ending = 0x544D
	lsb := hs<<16 | ending
	return uint64(Encrypt(seed, key))<<32 | uint64(Encrypt(lsb, key))
}

// Mirror reverses the byte order of a key. Some keystores carry keys in
// this order.
func Mirror(key uint64) (out uint64) {
	for i := uint(0); i < 64; i += 8 {
		out |= uint64(uint8(key>>i)) << (56 - i)
	}
	return out
}

// A Variant is one way of turning a keystore entry into a device key.
type Variant uint8

const (
	VariantSimple Variant = iota
	VariantSimpleMirrored
	VariantNormal
	VariantNormalMirrored
	VariantSecure
	VariantSecureMirrored
	VariantMagicXorType1
	VariantFAAC
)

func (v Variant) String() string {
	switch v {
	case VariantSimple:
		return "Simple"
	case VariantSimpleMirrored:
		return "Simple (mirrored)"
	case VariantNormal:
		return "Normal"
	case VariantNormalMirrored:
		return "Normal (mirrored)"
	case VariantSecure:
		return "Secure"
	case VariantSecureMirrored:
		return "Secure (mirrored)"
	case VariantMagicXorType1:
		return "Magic XOR Type 1"
	case VariantFAAC:
		return "FAAC"
	}
	return fmt.Sprintf("Variant(%d)", uint8(v))
}

// Variants lists the derivations tried for an entry of the given learning
// type, in order.
func Variants(t keystore.LearningType) []Variant {
	switch t {
	case keystore.LearningSimple:
		return []Variant{VariantSimple}
	case keystore.LearningNormal:
		return []Variant{VariantNormal}
	case keystore.LearningSecure:
		return []Variant{VariantSecure}
	case keystore.LearningMagicXorType1:
		return []Variant{VariantMagicXorType1}
	case keystore.LearningUnknown:
		return []Variant{
			VariantSimple, VariantSimpleMirrored,
			VariantNormal, VariantNormalMirrored,
			VariantSecure, VariantSecureMirrored,
			VariantMagicXorType1,
		}
	}
	return nil
}

// DeviceKey derives the cipher key for a remote from a manufacturer key.
func DeviceKey(v Variant, fix, seed uint32, key uint64) uint64 {
	switch v {
	case VariantSimple:
		return key
	case VariantSimpleMirrored:
		return Mirror(key)
	case VariantNormal:
		return NormalLearning(fix, key)
	case VariantNormalMirrored:
		return NormalLearning(fix, Mirror(key))
	case VariantSecure:
		return SecureLearning(fix, seed, key)
	case VariantSecureMirrored:
		return SecureLearning(fix, seed, Mirror(key))
	case VariantMagicXorType1:
		return MagicXorType1Learning(fix, key)
	case VariantFAAC:
		return FAACLearning(seed, key)
	}
	return key
}

// A Match is the outcome of a successful manufacturer resolution.
type Match struct {
	Manufacturer string
	Variant      Variant
	Decrypt      uint32
	Entry        keystore.Entry
}

// Resolve tries every entry in keystore order, and every variant the
// entry's learning type allows, until valid accepts the decrypted hop. The
// first match wins.
func Resolve(fix, hop, seed uint32, entries []keystore.Entry, valid func(decrypt uint32) bool) (Match, bool) {
	return ResolveFunc(fix, hop, seed, entries, Variants, valid)
}

// ResolveFunc is Resolve with the variants tried per learning type chosen
// by the caller. Protocols that only know a subset of the learning schemes
// use it.
func ResolveFunc(fix, hop, seed uint32, entries []keystore.Entry, variants func(keystore.LearningType) []Variant, valid func(decrypt uint32) bool) (Match, bool) {
	for _, e := range entries {
		for _, v := range variants(e.Type) {
			decrypt := Decrypt(hop, DeviceKey(v, fix, seed, e.Key))
			if valid(decrypt) {
				return Match{e.Name, v, decrypt, e}, true
			}
		}
	}
	return Match{}, false
}

// Seal encrypts plain with the device key variant v derives from key. It is
// the inverse of a successful Resolve.
func Seal(plain, fix, seed uint32, key uint64, v Variant) uint32 {
	return Encrypt(plain, DeviceKey(v, fix, seed, key))
}
