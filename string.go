package yapp

import (
	"bytes"

	"golang.org/x/text/encoding/unicode"
)

// cString converts an ASCII byte sequence to a string, stopping at the first
// zero byte.
func cString(b []byte) string {
	i := bytes.IndexByte(b, 0)
	if i == -1 {
		i = len(b)
	}
	return string(b[:i])
}

// CString reads the NUL-terminated string at the given backing-byte index.
func CString(pe *PE, memoryOffset int) (string, error) {
	region, err := pe.CStringAt(memoryOffset)
	if err != nil {
		return "", err
	}

	raw, err := region.Bytes()
	if err != nil {
		return "", err
	}

	return cString(raw), nil
}

// WString reads and decodes the NUL-terminated UTF-16LE string at the given
// backing-byte index.
func WString(pe *PE, memoryOffset int) (string, error) {
	region, err := pe.WStringAt(memoryOffset)
	if err != nil {
		return "", err
	}

	raw, err := region.Bytes()
	if err != nil {
		return "", err
	}

	// strip the terminator before decoding
	for len(raw) >= 2 && raw[len(raw)-2] == 0 && raw[len(raw)-1] == 0 {
		raw = raw[:len(raw)-2]
	}

	decoder := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()

	decoded, err := decoder.Bytes(raw)
	if err != nil {
		return "", err
	}

	return string(decoded), nil
}
