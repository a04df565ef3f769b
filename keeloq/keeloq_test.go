package keeloq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/bemasher/subghz/keystore"
)

func TestVector(t *testing.T) {
	const (
		key    = 0x5CEC6701B79FD949
		plain  = 0xF741E2DB
		cipher = 0xE44F4CDF
	)

	if c := Encrypt(plain, key); c != cipher {
		t.Fatalf("Expected %08X got %08X\n", cipher, c)
	}
	if p := Decrypt(cipher, key); p != plain {
		t.Fatalf("Expected %08X got %08X\n", plain, p)
	}
}

func TestRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		plain := rapid.Uint32().Draw(t, "plain")
		key := rapid.Uint64().Draw(t, "key")

		if got := Decrypt(Encrypt(plain, key), key); got != plain {
			t.Fatalf("key %016X: expected %08X got %08X", key, plain, got)
		}
	})
}

func TestMirror(t *testing.T) {
	assert.EqualValues(t, uint64(0xEFCDAB8967452301), Mirror(0x0123456789ABCDEF))

	rapid.Check(t, func(t *rapid.T) {
		key := rapid.Uint64().Draw(t, "key")
		if Mirror(Mirror(key)) != key {
			t.Fatalf("mirror is not an involution for %016X", key)
		}
	})
}

func TestNormalLearningIgnoresButton(t *testing.T) {
	const key = 0x0123456789ABCDEF
	assert.Equal(t, NormalLearning(0x10ABCDEF, key), NormalLearning(0xF0ABCDEF, key))
	assert.Equal(t, MagicXorType1Learning(0x10ABCDEF, key), MagicXorType1Learning(0x00ABCDEF, key))
}

func TestFAACLearning(t *testing.T) {
	const (
		seed = 0x12345678
		key  = 0x0123456789ABCDEF
	)
	k := FAACLearning(seed, key)
	assert.EqualValues(t, Encrypt(seed, key), uint32(k>>32))
	assert.EqualValues(t, Encrypt(0x1234544D, key), uint32(k))
}

func keeloqCheck(fix uint32) func(uint32) bool {
	btn := fix >> 28
	end := fix & 0xFF
	return func(decrypt uint32) bool {
		disc := (decrypt >> 16) & 0xFF
		return decrypt>>28 == btn && (disc == end || disc == 0)
	}
}

// The hop below only validates when the Normal Learning key is derived from
// the mirrored form of keyA.
const (
	keyA  = 0x0123456789ABCDEF
	keyB  = 0x1111222233334444
	fix   = 0x20ABCDEF
	hop   = 0xD6AC08CE
	plain = 0x20EF1234
)

func TestResolveFallbackOrder(t *testing.T) {
	entries := []keystore.Entry{
		{Name: "B", Key: keyB, Type: keystore.LearningSimple},
		{Name: "A", Key: keyA, Type: keystore.LearningUnknown},
		{Name: "C", Key: Mirror(keyA), Type: keystore.LearningNormal},
	}

	m, ok := Resolve(fix, hop, 0, entries, keeloqCheck(fix))
	require.True(t, ok)
	assert.Equal(t, "A", m.Manufacturer)
	assert.Equal(t, VariantNormalMirrored, m.Variant)
	assert.EqualValues(t, plain, m.Decrypt)
}

func TestResolveKeystoreOrderWins(t *testing.T) {
	entries := []keystore.Entry{
		{Name: "C", Key: Mirror(keyA), Type: keystore.LearningNormal},
		{Name: "A", Key: keyA, Type: keystore.LearningUnknown},
	}

	m, ok := Resolve(fix, hop, 0, entries, keeloqCheck(fix))
	require.True(t, ok)
	assert.Equal(t, "C", m.Manufacturer)
	assert.Equal(t, VariantNormal, m.Variant)
}

func TestResolveTypedEntriesSkipFallbacks(t *testing.T) {
	// A Simple entry never tries derived keys.
	entries := []keystore.Entry{{Name: "A", Key: keyA, Type: keystore.LearningSimple}}

	_, ok := Resolve(fix, hop, 0, entries, keeloqCheck(fix))
	assert.False(t, ok)
}

func TestResolveMiss(t *testing.T) {
	_, ok := Resolve(fix, hop, 0, nil, keeloqCheck(fix))
	assert.False(t, ok)
}

func TestDeviceKeyVariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		fix := rapid.Uint32().Draw(t, "fix")
		seed := rapid.Uint32().Draw(t, "seed")
		key := rapid.Uint64().Draw(t, "key")
		plain := rapid.Uint32().Draw(t, "plain")

		for _, v := range Variants(keystore.LearningUnknown) {
			dk := DeviceKey(v, fix, seed, key)
			if Decrypt(Encrypt(plain, dk), dk) != plain {
				t.Fatalf("%s: round trip failed", v)
			}
		}
	})
}

func TestSealResolves(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		entry := keystore.Entry{
			Name: "Test",
			Key:  rapid.Uint64().Draw(t, "key"),
			Type: keystore.LearningUnknown,
		}
		v := rapid.SampledFrom(Variants(keystore.LearningUnknown)).Draw(t, "variant")
		fix := rapid.Uint32().Draw(t, "fix")
		seed := rapid.Uint32().Draw(t, "seed")
		plain := rapid.Uint32().Draw(t, "plain")

		hop := Seal(plain, fix, seed, entry.Key, v)
		m, ok := Resolve(fix, hop, seed, []keystore.Entry{entry}, func(d uint32) bool { return d == plain })
		if !ok || m.Decrypt != plain {
			t.Fatalf("%s: expected %08X, resolved %v %+v", v, plain, ok, m)
		}
	})
}

func BenchmarkDecrypt(b *testing.B) {
	b.ReportAllocs()
	for n := 0; n < b.N; n++ {
		Decrypt(uint32(n), 0x5CEC6701B79FD949)
	}
}
