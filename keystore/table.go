package keystore

import (
	"bufio"
	"crypto/cipher"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/bemasher/subghz/fff"
)

// A Table is a lookup table blob, optionally encrypted, read by offset.
// Encrypted tables keep their ciphertext in memory and decrypt only the
// blocks a read touches.
type Table struct {
	data  []byte
	block cipher.Block
	iv    [BlockSize]byte
}

// NewTable wraps a plaintext table.
func NewTable(data []byte) *Table {
	return &Table{data: data}
}

// OpenTable reads a raw keystore container from r.
func OpenTable(r io.Reader, key []byte) (*Table, error) {
	rd := fff.NewReader(r)

	h, err := readHeader(rd, RawFileType)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	for {
		line, ok := rd.Line()
		if !ok {
			break
		}
		sb.WriteString(strings.Join(strings.Fields(line), ""))
	}
	if err := rd.Err(); err != nil {
		return nil, err
	}

	data, err := hex.DecodeString(sb.String())
	if err != nil {
		return nil, errors.Wrap(err, "keystore: table body")
	}

	t := &Table{data: data}
	if h.encryption == EncryptionAES256 {
		if len(data)%BlockSize != 0 {
			return nil, errors.Wrapf(ErrBlockSize, "table body: %d bytes", len(data))
		}
		if t.block, err = newCipher(key); err != nil {
			return nil, err
		}
		t.iv = MassageIV(h.iv)
	}

	return t, nil
}

func OpenTableFile(path string, key []byte) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "keystore")
	}
	defer f.Close()

	t, err := OpenTable(f, key)
	return t, errors.Wrapf(err, "%s", path)
}

func (t *Table) Size() int64 {
	return int64(len(t.data))
}

func (t *Table) Encrypted() bool {
	return t.block != nil
}

// ReadAt implements io.ReaderAt.
func (t *Table) ReadAt(p []byte, off int64) (n int, err error) {
	if off < 0 {
		return 0, errors.New("keystore: negative offset")
	}
	if off >= t.Size() {
		return 0, io.EOF
	}

	end := off + int64(len(p))
	if end > t.Size() {
		end = t.Size()
		err = io.EOF
	}

	if t.block == nil {
		n = copy(p, t.data[off:end])
		return n, err
	}

	var plain [BlockSize]byte
	for blk := off / BlockSize; blk*BlockSize < end; blk++ {
		start := blk * BlockSize
		prev := t.iv[:]
		if blk > 0 {
			prev = t.data[start-BlockSize : start]
		}

		t.block.Decrypt(plain[:], t.data[start:start+BlockSize])
		for i := range plain {
			plain[i] ^= prev[i]
		}

		lo, hi := int64(0), int64(BlockSize)
		if start < off {
			lo = off - start
		}
		if start+hi > end {
			hi = end - start
		}
		n += copy(p[n:], plain[lo:hi])
	}

	return n, err
}

// RawGetData opens an encrypted table and reads length bytes at offset.
func RawGetData(path string, key []byte, offset int64, length int) ([]byte, error) {
	t, err := OpenTableFile(path, key)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, length)
	if _, err := t.ReadAt(buf, offset); err != nil {
		return nil, errors.Wrapf(err, "keystore: read %d bytes at %d", length, offset)
	}
	return buf, nil
}

// SaveTable writes data as a raw keystore container. Encrypted tables are
// zero padded to the block size.
func SaveTable(w io.Writer, data, key, iv []byte) error {
	if err := writeHeader(w, RawFileType, key, iv); err != nil {
		return err
	}

	body := data
	if key != nil {
		enc, err := encrypter(key, iv)
		if err != nil {
			return err
		}
		body = make([]byte, (len(data)+BlockSize-1)/BlockSize*BlockSize)
		copy(body, data)
		enc.CryptBlocks(body, body)
	}

	bw := bufio.NewWriter(w)
	for len(body) > 0 {
		n := 32
		if n > len(body) {
			n = len(body)
		}
		if _, err := fmt.Fprintln(bw, strings.ToUpper(hex.EncodeToString(body[:n]))); err != nil {
			return errors.Wrap(err, "keystore: save table")
		}
		body = body[n:]
	}

	return errors.Wrap(bw.Flush(), "keystore: save table")
}
