package gen

import (
	"fmt"
	"math"

	"github.com/bemasher/subghz/pulse"
)

func UnpackBits(data []byte) []byte {
	bits := make([]byte, len(data)<<3)

	for idx, b := range data {
		offset := idx << 3
		for bit := 7; bit >= 0; bit-- {
			bits[offset+(7-bit)] = (b >> uint8(bit)) & 0x01
		}
	}

	return bits
}

func CmplxOscillatorF64(samples int, freq float64, samplerate float64) []float64 {
	signal := make([]float64, samples<<1)

	for idx := 0; idx < len(signal); idx += 2 {
		signal[idx], signal[idx+1] = math.Sincos(2 * math.Pi * float64(idx) * freq / samplerate)
	}

	return signal
}

func F64toU8(f64 []float64, u8 []byte) {
	if len(f64) != len(u8) {
		panic(fmt.Errorf("arrays must have same dimensions: %d != %d", len(f64), len(u8)))
	}

	for idx, val := range f64 {
		u8[idx] = uint8(val*127.5 + 127.5)
	}
}

// OOK renders a sample sequence as an interleaved u8 IQ stream at the given
// sample rate. High samples carry a tone at freq Hz off center with the
// given amplitude (0 to 1); low samples are silent.
func OOK(samples []pulse.Sample, freq, sampleRate, amplitude float64) []byte {
	var total int
	counts := make([]int, len(samples))
	for idx, s := range samples {
		counts[idx] = int(math.Round(float64(s.Duration) * sampleRate / 1e6))
		total += counts[idx]
	}

	carrier := CmplxOscillatorF64(total, freq, sampleRate)

	offset := 0
	for idx, s := range samples {
		n := counts[idx] << 1
		for i := offset; i < offset+n; i++ {
			if s.Level {
				carrier[i] *= amplitude
			} else {
				carrier[i] = 0
			}
		}
		offset += n
	}

	iq := make([]byte, len(carrier))
	F64toU8(carrier, iq)

	return iq
}
