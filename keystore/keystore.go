// Package keystore loads the manufacturer key database used to resolve
// rolling codes, and the encrypted lookup tables some table driven decoders
// need.
//
// A keystore file is an fff container:
//
//	Filetype: Flipper SubGhz Keystore File
//	Version: 0
//	Encryption: 1
//	IV: 00 11 22 33 44 55 66 77 88 99 AA BB CC DD EE FF
//	<hex encoded, AES-256-CBC encrypted lines>
//
// Each decrypted line has the form KEY:TYPE:NAME where KEY is 16 upper case
// hex characters.
package keystore

import (
	"bufio"
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/bemasher/subghz/fff"
)

const (
	FileType    = "Flipper SubGhz Keystore File"
	RawFileType = "Flipper SubGhz Keystore RAW File"
	Version     = 0

	KeySize   = 32
	BlockSize = aes.BlockSize
)

type Encryption uint32

const (
	EncryptionNone Encryption = iota
	EncryptionAES256
)

var (
	ErrFileType    = errors.New("keystore: file type mismatch")
	ErrVersion     = errors.New("keystore: version mismatch")
	ErrEncryption  = errors.New("keystore: unsupported encryption")
	ErrKeyRequired = errors.New("keystore: 32 byte key required")
	ErrBlockSize   = errors.New("keystore: encrypted line is not a multiple of the block size")
	ErrIV          = errors.New("keystore: iv must be 16 bytes")
	ErrEntry       = errors.New("keystore: malformed entry")
	ErrDecrypt     = errors.New("keystore: no entry decrypted")
)

// LearningType selects how a manufacturer key becomes a device key.
type LearningType uint8

const (
	LearningUnknown LearningType = iota
	LearningSimple
	LearningNormal
	LearningSecure
	LearningMagicXorType1
	LearningFAAC
)

func (t LearningType) String() string {
	switch t {
	case LearningUnknown:
		return "Unknown"
	case LearningSimple:
		return "Simple"
	case LearningNormal:
		return "Normal"
	case LearningSecure:
		return "Secure"
	case LearningMagicXorType1:
		return "Magic XOR Type 1"
	case LearningFAAC:
		return "FAAC"
	}
	return fmt.Sprintf("LearningType(%d)", uint8(t))
}

type Entry struct {
	Name string
	Key  uint64
	Type LearningType
}

func (e Entry) String() string {
	return fmt.Sprintf("%016X:%d:%s", e.Key, e.Type, e.Name)
}

var entryRe = regexp.MustCompile(`^([0-9A-F]{16}):([0-9]+):(.+)$`)

// ParseEntry parses one KEY:TYPE:NAME line.
func ParseEntry(line string) (e Entry, err error) {
	m := entryRe.FindStringSubmatch(line)
	if m == nil {
		return e, errors.Wrapf(ErrEntry, "%q", line)
	}

	e.Key, err = strconv.ParseUint(m[1], 16, 64)
	if err != nil {
		return e, errors.Wrapf(ErrEntry, "%q: %s", line, err)
	}

	t, err := strconv.ParseUint(m[2], 10, 8)
	if err != nil {
		return e, errors.Wrapf(ErrEntry, "%q: %s", line, err)
	}
	e.Type = LearningType(t)
	e.Name = m[3]

	return e, nil
}

// A Keystore is an ordered list of manufacturer keys. It is read-only once
// loaded and may be shared between decoders.
type Keystore struct {
	Entries []Entry
}

func (ks *Keystore) Len() int {
	if ks == nil {
		return 0
	}
	return len(ks.Entries)
}

// Lookup returns the first entry named name.
func (ks *Keystore) Lookup(name string) (Entry, bool) {
	if ks == nil {
		return Entry{}, false
	}
	for _, e := range ks.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// MassageIV diversifies a stored IV before it is used: each of the first
// eight bytes has the previous byte added to it, modulo 256. The upper eight
// bytes are unchanged.
func MassageIV(iv [BlockSize]byte) (out [BlockSize]byte) {
	out = iv
	for i := 1; i < 8; i++ {
		out[i] = iv[i] + iv[i-1]
	}
	return out
}

type header struct {
	encryption Encryption
	iv         [BlockSize]byte
}

func readHeader(r *fff.Reader, fileType string) (h header, err error) {
	v, err := r.Field("Filetype")
	if err != nil {
		return h, err
	}
	if v != fileType {
		return h, errors.Wrapf(ErrFileType, "%q", v)
	}

	v, err = r.Field("Version")
	if err != nil {
		return h, err
	}
	if n, err := strconv.ParseUint(v, 10, 32); err != nil || n != Version {
		return h, errors.Wrapf(ErrVersion, "%q", v)
	}

	v, err = r.Field("Encryption")
	if err != nil {
		return h, err
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return h, errors.Wrapf(ErrEncryption, "%q", v)
	}
	h.encryption = Encryption(n)

	switch h.encryption {
	case EncryptionNone:
	case EncryptionAES256:
		v, err = r.Field("IV")
		if err != nil {
			return h, err
		}
		iv, err := hex.DecodeString(strings.Join(strings.Fields(v), ""))
		if err != nil || len(iv) != BlockSize {
			return h, errors.Wrapf(ErrIV, "%q", v)
		}
		copy(h.iv[:], iv)
	default:
		return h, errors.Wrapf(ErrEncryption, "%d", h.encryption)
	}

	return h, nil
}

func newCipher(key []byte) (cipher.Block, error) {
	if len(key) != KeySize {
		return nil, errors.Wrapf(ErrKeyRequired, "got %d bytes", len(key))
	}
	block, err := aes.NewCipher(key)
	return block, errors.Wrap(err, "keystore")
}

// Load reads a keystore from r. Key is the 32 byte AES key used when the
// file is encrypted and may be nil for plaintext files. Lines that do not
// parse are skipped.
func Load(r io.Reader, key []byte) (*Keystore, error) {
	rd := fff.NewReader(r)

	h, err := readHeader(rd, FileType)
	if err != nil {
		return nil, err
	}

	var dec cipher.BlockMode
	if h.encryption == EncryptionAES256 {
		block, err := newCipher(key)
		if err != nil {
			return nil, err
		}
		iv := MassageIV(h.iv)
		dec = cipher.NewCBCDecrypter(block, iv[:])
	}

	ks := &Keystore{}
	skipped := 0
	for lineNum := 1; ; lineNum++ {
		line, ok := rd.Line()
		if !ok {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if dec != nil {
			buf, err := hex.DecodeString(line)
			if err != nil {
				return nil, errors.Wrapf(err, "keystore: line %d", lineNum)
			}
			if len(buf) == 0 || len(buf)%BlockSize != 0 {
				return nil, errors.Wrapf(ErrBlockSize, "line %d: %d bytes", lineNum, len(buf))
			}
			dec.CryptBlocks(buf, buf)
			line = strings.TrimRight(string(buf), "\x00\r\n")
		}

		e, err := ParseEntry(line)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"line": lineNum,
			}).Warn("keystore: skipping malformed entry")
			skipped++
			continue
		}
		ks.Entries = append(ks.Entries, e)
	}
	if err := rd.Err(); err != nil {
		return nil, err
	}

	// A wrong key still decrypts, just to noise.
	if dec != nil && skipped > 0 && len(ks.Entries) == 0 {
		return nil, errors.Wrapf(ErrDecrypt, "%d lines", skipped)
	}

	return ks, nil
}

// LoadFile opens path and calls Load.
func LoadFile(path string, key []byte) (*Keystore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "keystore")
	}
	defer f.Close()

	ks, err := Load(f, key)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}

	logrus.WithFields(logrus.Fields{
		"path":    path,
		"entries": ks.Len(),
	}).Info("keystore loaded")

	return ks, nil
}

func writeHeader(w io.Writer, fileType string, key, iv []byte) error {
	enc := EncryptionNone
	if key != nil {
		enc = EncryptionAES256
	}

	f := fff.New()
	f.Set("Filetype", fileType)
	f.SetUint32("Version", Version)
	f.SetUint32("Encryption", uint32(enc))
	if enc == EncryptionAES256 {
		if len(iv) != BlockSize {
			return errors.Wrapf(ErrIV, "got %d bytes", len(iv))
		}
		f.SetHex("IV", iv)
	}

	_, err := f.WriteTo(w)
	return err
}

func encrypter(key, iv []byte) (cipher.BlockMode, error) {
	block, err := newCipher(key)
	if err != nil {
		return nil, err
	}
	var stored [BlockSize]byte
	copy(stored[:], iv)
	massaged := MassageIV(stored)
	return cipher.NewCBCEncrypter(block, massaged[:]), nil
}

// Save writes ks to w. A nil key writes a plaintext file, otherwise every
// entry is NUL padded to the block size, encrypted in one CBC chain and hex
// encoded on its own line.
func (ks *Keystore) Save(w io.Writer, key, iv []byte) error {
	if err := writeHeader(w, FileType, key, iv); err != nil {
		return err
	}

	var enc cipher.BlockMode
	if key != nil {
		var err error
		if enc, err = encrypter(key, iv); err != nil {
			return err
		}
	}

	bw := bufio.NewWriter(w)
	for _, e := range ks.Entries {
		line := e.String()
		if enc != nil {
			buf := make([]byte, (len(line)+BlockSize-1)/BlockSize*BlockSize)
			copy(buf, line)
			enc.CryptBlocks(buf, buf)
			line = strings.ToUpper(hex.EncodeToString(buf))
		}
		if _, err := fmt.Fprintln(bw, line); err != nil {
			return errors.Wrap(err, "keystore: save")
		}
	}

	return errors.Wrap(bw.Flush(), "keystore: save")
}
