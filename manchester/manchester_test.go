package manchester

import (
	"testing"

	"pgregory.net/rapid"

	"github.com/bemasher/subghz/pulse"
)

const te = 500

func decode(t interface{ Fatalf(string, ...any) }, samples []pulse.Sample) (data uint64, n int) {
	var d Decoder
	d.Reset()
	// The sync pulse leaves the decoder as if it had just seen the middle
	// of a zero.
	d.Advance(LongHigh)

	for _, s := range samples {
		e, ok := Classify(s.Level, s.Duration, te, 2*te, te/4)
		if !ok {
			t.Fatalf("unclassified pulse %s", s)
		}
		if !d.Allowed(e) {
			t.Fatalf("%s not allowed from state %d", e, d.State())
		}
		if bit, ok := d.Advance(e); ok {
			data <<= 1
			if bit {
				data |= 1
			}
			n++
		}
	}
	return data, n
}

func TestRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		bits := rapid.Uint8Range(1, 64).Draw(t, "bits")
		data := rapid.Uint64().Draw(t, "data")
		if bits < 64 {
			data &= 1<<bits - 1
		}

		// Second half of the sync zero.
		samples := []pulse.Sample{pulse.Low(te)}
		samples = AppendBits(samples, data, bits, te)

		got, n := decode(t, samples)
		if n != int(bits) || got != data {
			t.Fatalf("expected %d bits %X got %d bits %X", bits, data, n, got)
		}
	})
}

func TestInvalidEventResets(t *testing.T) {
	var d Decoder
	d.Reset()

	// Mid1 cannot be followed by another low.
	if _, ok := d.Advance(LongLow); ok {
		t.Fatal("expected no bit")
	}
	if d.State() != Mid1 {
		t.Fatalf("expected Mid1 got %d", d.State())
	}

	d.Advance(LongHigh)
	if d.State() != Mid0 {
		t.Fatalf("expected Mid0 got %d", d.State())
	}
	d.Advance(Reset)
	if d.State() != Mid1 {
		t.Fatalf("expected Mid1 after reset got %d", d.State())
	}
}

func TestAppendMerges(t *testing.T) {
	samples := AppendBits(nil, 0x3, 2, te)
	expt := []pulse.Sample{pulse.Low(te), pulse.High(te), pulse.Low(te), pulse.High(te)}
	if len(samples) != len(expt) {
		t.Fatalf("expected %v got %v", expt, samples)
	}

	samples = AppendBits(nil, 0x2, 2, te)
	expt = []pulse.Sample{pulse.Low(te), pulse.High(2 * te), pulse.Low(te)}
	for idx := range expt {
		if samples[idx] != expt[idx] {
			t.Fatalf("expected %v got %v", expt, samples)
		}
	}
}
