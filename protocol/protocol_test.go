package protocol

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bemasher/subghz/fff"
	"github.com/bemasher/subghz/pulse"
)

// counter publishes a frame every fourth sample.
type counter struct {
	Base
	samples int
}

func newCounter(name string) *counter {
	return &counter{Base: NewBase(name, TypeStatic)}
}

func (c *counter) Reset() {
	c.ResetBase()
	c.samples = 0
}

func (c *counter) Parse(level bool, duration uint32) {
	c.samples++
	c.AddBit(0)
	if c.samples%4 == 0 {
		c.Publish(uint64(c.samples), 8)
		c.Notify(c)
	}
}

func (c *counter) String() string { return c.Command().String() }

func TestRegistryDuplicate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newCounter("A")))
	err := r.Register(newCounter("A"))
	assert.True(t, errors.Is(err, ErrDuplicate), "%+v", err)
	assert.Error(t, r.Register(nil))
	assert.Equal(t, 1, r.Len())
}

func TestRegistryFind(t *testing.T) {
	r := NewRegistry()
	a, b := newCounter("A"), newCounter("B")
	require.NoError(t, r.Register(a))
	require.NoError(t, r.Register(b))

	d, err := r.Find("B")
	require.NoError(t, err)
	assert.Same(t, b, d)

	_, err = r.Find("C")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, []string{"A", "B"}, r.Names())
}

func TestRegistryDispatch(t *testing.T) {
	r := NewRegistry()
	a, b := newCounter("A"), newCounter("B")
	require.NoError(t, r.Register(a))
	require.NoError(t, r.Register(b))

	var found []string
	r.SetCallback(func(d Decoder) { found = append(found, d.Name()) })

	for i := 0; i < 8; i++ {
		r.Dispatch(i&1 == 0, 100)
	}
	assert.Equal(t, 8, a.samples)
	assert.Equal(t, 8, b.samples)
	assert.Equal(t, []string{"A", "B", "A", "B"}, found)

	r.ResetAll()
	assert.Zero(t, a.samples)
	assert.Zero(t, b.DataCountBit)
}

func TestReverseKey(t *testing.T) {
	assert.Equal(t, uint64(0x1), ReverseKey(0x8, 4))
	assert.Equal(t, uint64(0xF0), ReverseKey(0x0F, 8))
	assert.Equal(t, uint64(0x8000000000000000), ReverseKey(1, 64))

	for _, key := range []uint64{0, 1, 0xDEADBEEF, 0x0123456789ABCDEF} {
		assert.Equal(t, key, ReverseKey(ReverseKey(key, 64), 64))
	}
}

func TestCheckBits(t *testing.T) {
	assert.NoError(t, CheckBits(24, 12, 24))
	assert.True(t, errors.Is(CheckBits(25, 12, 24), ErrBitCount))
}

func TestGenericSerialize(t *testing.T) {
	g := Generic{Data: 0x5A5A54, DataCountBit: 24}
	f := NewKeyFile(433920000, "FuriHalSubGhzPresetOok650Async")
	g.Serialize(f, "Princeton")

	key, ok := f.Get("Key")
	require.True(t, ok)
	assert.Equal(t, "00 00 00 00 00 5A 5A 54", key)

	var out Generic
	require.NoError(t, out.Deserialize(f))
	assert.Equal(t, g, out)

	job, err := JobFromFile(f)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x5A5A54), job.Data)
	assert.Equal(t, uint8(24), job.Bits)
}

func TestJobFromFileOptional(t *testing.T) {
	f := fff.New()
	f.Set("Protocol", "KeeLoq")
	f.SetUint32("Bit", 64)
	f.Set("Key", "C0 00 00 00 12 34 56 78")
	f.SetUint32("Repeat", 3)
	f.Set("Seed", "01 02 03 04")
	f.Set("Manufacture", "DoorHan")

	job, err := JobFromFile(f)
	require.NoError(t, err)
	assert.Equal(t, 3, job.Repeat)
	assert.Equal(t, uint32(0x01020304), job.Seed)
	assert.Equal(t, "DoorHan", job.Manufacturer)
}

func TestTransmitterRepeat(t *testing.T) {
	tx := NewTransmitter("Test", 2)
	upload := []pulse.Sample{pulse.High(100), pulse.Low(200)}
	tx.Start(upload, 0)

	var got []pulse.Sample
	for s := tx.Yield(); !s.IsReset(); s = tx.Yield() {
		got = append(got, s)
	}
	assert.Equal(t, append(upload, upload...), got)
	assert.False(t, tx.Running())

	tx.Restart()
	assert.True(t, tx.Running())
	assert.Equal(t, upload[0], tx.Yield())

	tx.Stop()
	assert.True(t, tx.Yield().IsReset())
}

func TestAppendPWM(t *testing.T) {
	samples := AppendPWM(nil, 0x2, 2, [2]uint32{300, 100}, [2]uint32{100, 300})
	assert.Equal(t, []pulse.Sample{
		pulse.High(300), pulse.Low(100),
		pulse.High(100), pulse.Low(300),
	}, samples)
}
