package fff

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const keyFile = `Filetype: Flipper SubGhz Key File
Version: 1
# comment
Frequency: 433920000
Protocol: Princeton
Bit: 24
Key: 00 00 00 00 00 5A 5A 54
RAW_Data: 400 -1200
RAW_Data: 1200 -400
`

func TestRead(t *testing.T) {
	f, err := Read(strings.NewReader(keyFile))
	require.NoError(t, err)

	proto, err := f.String("Protocol")
	require.NoError(t, err)
	assert.Equal(t, "Princeton", proto)

	bits, err := f.Uint32("Bit")
	require.NoError(t, err)
	assert.EqualValues(t, 24, bits)

	key, err := f.Hex("Key")
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0x5A, 0x5A, 0x54}, key)

	assert.Equal(t, []string{"400 -1200", "1200 -400"}, f.All("RAW_Data"))

	_, err = f.String("Seed")
	assert.True(t, errors.Is(err, ErrMissing))
}

func TestWriteRead(t *testing.T) {
	f := New()
	f.Set("Protocol", "KeeLoq")
	f.SetUint32("Bit", 64)
	f.SetHex("Key", []byte{0xDE, 0xAD, 0xBE, 0xEF})
	f.Set("Protocol", "Star Line")

	buf := &bytes.Buffer{}
	_, err := f.WriteTo(buf)
	require.NoError(t, err)
	assert.Equal(t, "Protocol: Star Line\nBit: 64\nKey: DE AD BE EF\n", buf.String())

	g, err := Read(buf)
	require.NoError(t, err)
	assert.Equal(t, f.Fields, g.Fields)
}

func TestReaderField(t *testing.T) {
	r := NewReader(strings.NewReader("Filetype: x\r\nVersion: 0\nBODY\n"))

	v, err := r.Field("Filetype")
	require.NoError(t, err)
	assert.Equal(t, "x", v)

	_, err = r.Field("Encryption")
	assert.True(t, errors.Is(err, ErrMissing))

	line, ok := r.Line()
	assert.True(t, ok)
	assert.Equal(t, "BODY", line)
}

func TestSyntaxError(t *testing.T) {
	_, err := Read(strings.NewReader("Protocol Princeton\n"))
	assert.True(t, errors.Is(err, ErrSyntax))
}
