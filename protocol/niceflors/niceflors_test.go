package niceflors

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/bemasher/subghz/protocol"
	"github.com/bemasher/subghz/protocol/prototest"
	"github.com/bemasher/subghz/pulse"
)

const (
	serial = 0x0ABCDEF
	btn    = 0x2
	cnt    = 0x1234

	// serial and cnt through testTable.
	enc   = 0x8FBC8630527
	frame = 0x2D8FBC8630527
)

func testTable() *bytes.Reader {
	tbl := make([]byte, 32)
	for i := range tbl {
		tbl[i] = byte(0x10 + i)
	}
	return bytes.NewReader(tbl)
}

func testEnv() *protocol.Environment {
	return &protocol.Environment{NiceFlorSTable: testTable()}
}

func TestEncrypt(t *testing.T) {
	e, err := Encrypt(serial<<16|cnt, testTable())
	require.NoError(t, err)
	assert.Equal(t, uint64(enc), e)
	assert.Equal(t, uint64(frame), Frame(e, btn, 0))

	f, err := Decode(frame, testTable())
	require.NoError(t, err)
	assert.Equal(t, Fields{Serial: serial, Btn: btn, Cnt: cnt}, f)
}

func TestDecryptInvertsEncrypt(t *testing.T) {
	tbl := testTable()
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.Uint32Range(0, 0x0FFFFFFF).Draw(t, "serial")
		c := rapid.Uint32Range(0, 0xFFFF).Draw(t, "cnt")
		b := rapid.SampledFrom([]uint8{1, 2, 4, 8}).Draw(t, "btn")
		parcel := rapid.Uint8Range(0, 15).Draw(t, "parcel")

		e, err := Encrypt(uint64(s)<<16|uint64(c), tbl)
		if err != nil {
			t.Fatalf("%+v\n", err)
		}
		f, err := Decode(Frame(e, b, parcel), tbl)
		if err != nil {
			t.Fatalf("%+v\n", err)
		}
		if f.Serial != s || f.Cnt != c || f.Btn != b {
			t.Fatalf("expected %07X/%04X/%X got %+v\n", s, c, b, f)
		}
	})
}

func TestNiceOne(t *testing.T) {
	// Same press, button released then held.
	assert.Equal(t, uint32(0x899D6), NiceOne(0x1724A7D9A522F, 9, false))
	assert.Equal(t, uint32(0x8AB03), NiceOne(0x1424A7D9A522F, 10, true))
}

func TestNoTable(t *testing.T) {
	_, err := Decode(frame, nil)
	assert.Equal(t, protocol.ErrNoTable, errors.Cause(err))

	err = NewEncoder(nil).Load(protocol.Job{Serial: serial, Btn: btn, Cnt: cnt})
	assert.Equal(t, protocol.ErrNoTable, errors.Cause(err))

	// Undecodable without a table, but still received.
	samples := prototest.Transmit(t, NewEncoder(testEnv()), protocol.Job{Serial: serial, Btn: btn, Cnt: cnt, Repeat: 1})
	cmds := prototest.Capture(NewDecoder(nil), samples)
	require.Len(t, cmds, parcels)
	assert.Equal(t, uint64(frame), cmds[0].Data)
	assert.Zero(t, cmds[0].Serial)
}

func TestRoundTrip(t *testing.T) {
	env := testEnv()
	job := protocol.Job{Serial: serial, Btn: btn, Cnt: cnt, Repeat: 1}
	cmds := prototest.Capture(NewDecoder(env), prototest.Transmit(t, NewEncoder(env), job))
	require.Len(t, cmds, parcels)

	assert.Equal(t, uint64(frame), cmds[0].Data)
	for i, cmd := range cmds {
		assert.Equal(t, Frame(enc, btn, uint8(i)), cmd.Data)
		assert.Equal(t, uint8(52), cmd.Bits)
		assert.Equal(t, uint32(serial), cmd.Serial)
		assert.Equal(t, uint8(btn), cmd.Btn)
		assert.Equal(t, uint32(cnt), cmd.Cnt)
		assert.Empty(t, cmd.Note)
	}
}

func TestNiceOneRoundTrip(t *testing.T) {
	env := testEnv()
	job := protocol.Job{Serial: serial, Btn: btn, Cnt: cnt, Bits: NiceOneBits, Repeat: 1}
	cmds := prototest.Capture(NewDecoder(env), prototest.Transmit(t, NewEncoder(env), job))
	require.Len(t, cmds, parcels)

	for i, cmd := range cmds {
		assert.Equal(t, uint8(NiceOneBits), cmd.Bits)
		assert.Equal(t, Frame(enc, btn, uint8(i)), cmd.Data)
		assert.Equal(t, uint64(NiceOne(cmd.Data, uint8(i), i != 0)), cmd.Data2)
		assert.Equal(t, uint32(serial), cmd.Serial)
		assert.Equal(t, NiceOneName, cmd.Note)
	}
}

func TestSerialize(t *testing.T) {
	env := testEnv()
	job := protocol.Job{Serial: serial, Btn: btn, Cnt: cnt, Bits: NiceOneBits, Repeat: 1}

	dec := NewDecoder(env)
	require.Len(t, prototest.Capture(dec, prototest.Transmit(t, NewEncoder(env), job)), parcels)

	f := protocol.NewKeyFile(433920000, "AM650")
	require.NoError(t, dec.Serialize(f))

	restored := NewDecoder(env)
	require.NoError(t, restored.Deserialize(f))
	assert.Equal(t, dec.Command(), restored.Command())
}

func TestDeserializeAdvancesCounter(t *testing.T) {
	env := testEnv()
	job := protocol.Job{Serial: serial, Btn: btn, Cnt: cnt, Repeat: 1}

	dec := NewDecoder(env)
	require.NotEmpty(t, prototest.Capture(dec, prototest.Transmit(t, NewEncoder(env), job)))

	f := protocol.NewKeyFile(433920000, "AM650")
	require.NoError(t, dec.Serialize(f))

	e := NewEncoder(env)
	require.NoError(t, e.Deserialize(f))

	cmds := prototest.Capture(NewDecoder(env), pulse.Append(protocol.Drain(e), pulse.Low(prototest.Idle)))
	require.NotEmpty(t, cmds)
	assert.Equal(t, uint32(serial), cmds[0].Serial)
	assert.Equal(t, uint32(cnt+1), cmds[0].Cnt)
}

func TestTolerance(t *testing.T) {
	env := testEnv()
	samples := prototest.Transmit(t, NewEncoder(env), protocol.Job{Serial: serial, Btn: btn, Cnt: cnt, Repeat: 1})

	// First stop bit.
	idx := 3 + 2*int(Const.MinCountBit)
	require.Equal(t, Const.TeShort*3, samples[idx].Duration)

	edge := prototest.Replace(samples, idx, Const.TeShort*3+Const.TeDelta)
	assert.Len(t, prototest.Capture(NewDecoder(env), edge), parcels)

	// The header of the following parcel is consumed while recovering.
	over := prototest.Replace(samples, idx, Const.TeShort*3+Const.TeDelta+1)
	assert.Len(t, prototest.Capture(NewDecoder(env), over), parcels-2)
}
