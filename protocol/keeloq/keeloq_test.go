package keeloq

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bemasher/subghz/fff"
	"github.com/bemasher/subghz/keystore"
	"github.com/bemasher/subghz/protocol"
	"github.com/bemasher/subghz/protocol/prototest"
	"github.com/bemasher/subghz/pulse"
)

const (
	serial = 0x0ABCDEF
	btn    = 0x2
	cnt    = 0x1234

	// serial, btn and cnt under Alpha's normal learning key.
	frame = 0x8B57085EF7B3D504
)

func testEnv() *protocol.Environment {
	return &protocol.Environment{Keystore: &keystore.Keystore{Entries: []keystore.Entry{
		{Name: "Beta", Key: 0x1111222233334444, Type: keystore.LearningUnknown},
		{Name: "Alpha", Key: 0x0123456789ABCDEF, Type: keystore.LearningNormal},
	}}}
}

func TestSplitJoin(t *testing.T) {
	fix, hop := Split(frame)
	assert.Equal(t, uint32(0x20ABCDEF), fix)
	assert.Equal(t, uint32(0x7A10EAD1), hop)
	assert.Equal(t, uint64(frame), Join(fix, hop))
}

func TestDecode(t *testing.T) {
	f := Decode(frame, 0, testEnv().Entries())
	assert.Equal(t, "Alpha", f.Manufacturer)
	assert.Equal(t, uint32(serial), f.Serial)
	assert.Equal(t, uint8(btn), f.Btn)
	assert.Equal(t, uint32(cnt), f.Cnt)
	assert.True(t, f.Resolved)

	f = Decode(frame, 0, nil)
	assert.Equal(t, ManufacturerUnknown, f.Manufacturer)
	assert.Zero(t, f.Cnt)
}

func TestRoundTrip(t *testing.T) {
	env := testEnv()
	job := protocol.Job{Serial: serial, Btn: btn, Cnt: cnt, Manufacturer: "Alpha", Repeat: 3}
	samples := prototest.Transmit(t, NewEncoder(env), job)

	// Identical repeats are announced once.
	cmds := prototest.Capture(NewDecoder(env), samples)
	require.Len(t, cmds, 1)

	cmd := cmds[0]
	assert.Equal(t, uint64(frame), cmd.Data)
	assert.Equal(t, uint8(64), cmd.Bits)
	assert.Equal(t, uint32(serial), cmd.Serial)
	assert.Equal(t, uint8(btn), cmd.Btn)
	assert.Equal(t, uint32(cnt), cmd.Cnt)
	assert.Equal(t, "Alpha", cmd.Manufacturer)
	assert.Equal(t, protocol.TypeDynamic, cmd.Type)
}

func TestFastPaths(t *testing.T) {
	for _, mf := range []string{ManufacturerANMotors, ManufacturerHCS101} {
		job := protocol.Job{Serial: serial, Btn: btn, Cnt: 0x34, Manufacturer: mf, Repeat: 1}
		cmds := prototest.Capture(NewDecoder(nil), prototest.Transmit(t, NewEncoder(nil), job))
		require.Len(t, cmds, 1, mf)
		assert.Equal(t, mf, cmds[0].Manufacturer)
		assert.Equal(t, uint32(serial), cmds[0].Serial)
	}
}

func TestReplayUnknown(t *testing.T) {
	cmds := prototest.Capture(NewDecoder(nil), prototest.Transmit(t, NewEncoder(nil), protocol.Job{Data: frame, Repeat: 1}))
	require.Len(t, cmds, 1)
	assert.Equal(t, uint64(frame), cmds[0].Data)
	assert.Equal(t, ManufacturerUnknown, cmds[0].Manufacturer)

	err := NewEncoder(nil).Load(protocol.Job{})
	assert.True(t, errors.Is(err, protocol.ErrNoKey))

	err = NewEncoder(nil).Load(protocol.Job{Serial: serial, Manufacturer: "Alpha"})
	assert.True(t, errors.Is(err, protocol.ErrNoKey))
}

func TestDeserializeAdvancesCounter(t *testing.T) {
	env := testEnv()
	dec := NewDecoder(env)

	f := protocol.NewKeyFile(433920000, "FuriHalSubGhzPresetOok650Async")
	f.Set("Protocol", Name)
	f.SetUint32("Bit", 64)
	f.Set("Key", fff.FormatHex([]byte{0x8B, 0x57, 0x08, 0x5E, 0xF7, 0xB3, 0xD5, 0x04}))
	require.NoError(t, dec.Deserialize(f))
	require.NoError(t, dec.Serialize(f))
	mf, _ := f.Get("Manufacture")
	assert.Equal(t, "Alpha", mf)

	enc := NewEncoder(env)
	require.NoError(t, enc.Deserialize(f))

	cmds := prototest.Capture(NewDecoder(env), pulse.Append(protocol.Drain(enc), pulse.Low(prototest.Idle)))
	require.Len(t, cmds, 1)
	assert.Equal(t, uint32(cnt+1), cmds[0].Cnt)
	assert.Equal(t, uint64(0x9CA8E04DF7B3D504), cmds[0].Data)
}

func TestHeaderThreshold(t *testing.T) {
	enc := NewEncoder(nil)
	require.NoError(t, enc.Load(protocol.Job{Data: frame}))
	upload := enc.Upload()

	// Short highs in front of the header gap.
	for _, tc := range []struct {
		highs  int
		frames int
	}{
		{MinHeaderCount, 0},
		{MinHeaderCount + 1, 1},
	} {
		samples := upload[2*(headerCount+1-tc.highs):]
		assert.Len(t, prototest.Capture(NewDecoder(nil), samples), tc.frames, "%d highs", tc.highs)
	}
}

func TestTolerance(t *testing.T) {
	enc := NewEncoder(nil)
	require.NoError(t, enc.Load(protocol.Job{Data: frame}))
	upload := enc.Upload()

	// The second data bit is a zero: long high, short low.
	idx := 2*headerCount + 4
	require.Equal(t, Const.TeLong, upload[idx].Duration)

	edge := prototest.Replace(upload, idx, Const.TeLong+Const.TeDelta*2)
	assert.Len(t, prototest.Capture(NewDecoder(nil), edge), 1)

	over := prototest.Replace(upload, idx, Const.TeLong+Const.TeDelta*2+1)
	assert.Empty(t, prototest.Capture(NewDecoder(nil), over))
}
