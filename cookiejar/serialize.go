package cookiejar

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"
)

// jarMagic/version guard against feeding a serialized jar from an
// incompatible build into ToBytes/FromBytes.
const (
	jarMagic   uint32 = 0x4d564e4a // "MVNJ"
	jarVersion uint16 = 1
)

// ToBytes serializes every public field of every stored cookie plus the
// jar's policy flags into a stable, explicit length-prefixed format —
// spec.md §6 deliberately asks the rewrite to avoid the legacy binary
// formatter the source used.
func (j *Jar) ToBytes() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()

	var buf bytes.Buffer
	writeU32(&buf, jarMagic)
	writeU16(&buf, jarVersion)
	writeOptions(&buf, j.opts)
	writeU32(&buf, uint32(len(j.entries)))
	for _, c := range j.entries {
		writeCookie(&buf, c)
	}
	return buf.Bytes()
}

// FromBytes reconstructs a Jar from ToBytes output.
func FromBytes(data []byte) (*Jar, error) {
	r := bytes.NewReader(data)
	magic, err := readU32(r)
	if err != nil || magic != jarMagic {
		return nil, fmt.Errorf("cookiejar: bad magic")
	}
	version, err := readU16(r)
	if err != nil || version != jarVersion {
		return nil, fmt.Errorf("cookiejar: unsupported version %d", version)
	}
	opts, err := readOptions(r)
	if err != nil {
		return nil, err
	}
	count, err := readU32(r)
	if err != nil {
		return nil, err
	}
	j := New(opts)
	for i := uint32(0); i < count; i++ {
		c, err := readCookie(r)
		if err != nil {
			return nil, err
		}
		j.addLocked(*c)
	}
	return j, nil
}

func writeOptions(buf *bytes.Buffer, o Options) {
	var flags byte
	if o.EscapeValuesOnReceive {
		flags |= 1 << 0
	}
	if o.UnescapeValuesOnSend {
		flags |= 1 << 1
	}
	if o.IgnoreInvalidCookie {
		flags |= 1 << 2
	}
	if o.IgnoreSetForExpiredCookies {
		flags |= 1 << 3
	}
	if o.ExpireBeforeSet {
		flags |= 1 << 4
	}
	if o.CookieSingleHeader {
		flags |= 1 << 5
	}
	buf.WriteByte(flags)
}

func readOptions(r *bytes.Reader) (Options, error) {
	flags, err := r.ReadByte()
	if err != nil {
		return Options{}, err
	}
	return Options{
		EscapeValuesOnReceive:      flags&(1<<0) != 0,
		UnescapeValuesOnSend:       flags&(1<<1) != 0,
		IgnoreInvalidCookie:        flags&(1<<2) != 0,
		IgnoreSetForExpiredCookies: flags&(1<<3) != 0,
		ExpireBeforeSet:            flags&(1<<4) != 0,
		CookieSingleHeader:         flags&(1<<5) != 0,
	}, nil
}

func writeCookie(buf *bytes.Buffer, c *Cookie) {
	writeString(buf, c.Name)
	writeString(buf, c.Value)
	writeString(buf, c.Domain)
	writeString(buf, c.Path)
	writeI64(buf, c.Expires.Unix())
	writeBool(buf, !c.Expires.IsZero())
	writeBool(buf, c.Secure)
	writeBool(buf, c.HTTPOnly)
	writeBool(buf, c.Expired)
}

func readCookie(r *bytes.Reader) (*Cookie, error) {
	c := &Cookie{}
	var err error
	if c.Name, err = readString(r); err != nil {
		return nil, err
	}
	if c.Value, err = readString(r); err != nil {
		return nil, err
	}
	if c.Domain, err = readString(r); err != nil {
		return nil, err
	}
	if c.Path, err = readString(r); err != nil {
		return nil, err
	}
	unixSecs, err := readI64(r)
	if err != nil {
		return nil, err
	}
	hasExpiry, err := readBool(r)
	if err != nil {
		return nil, err
	}
	if hasExpiry {
		c.Expires = time.Unix(unixSecs, 0)
	}
	if c.Secure, err = readBool(r); err != nil {
		return nil, err
	}
	if c.HTTPOnly, err = readBool(r); err != nil {
		return nil, err
	}
	if c.Expired, err = readBool(r); err != nil {
		return nil, err
	}
	return c, nil
}

func writeString(buf *bytes.Buffer, s string) {
	writeU32(buf, uint32(len(s)))
	buf.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	n, err := readU32(r)
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := r.Read(b); err != nil {
		return "", err
	}
	return string(b), nil
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func readU32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := r.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func writeU16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func readU16(r *bytes.Reader) (uint16, error) {
	var b [2]byte
	if _, err := r.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

func writeI64(buf *bytes.Buffer, v int64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	buf.Write(b[:])
}

func readI64(r *bytes.Reader) (int64, error) {
	var b [8]byte
	if _, err := r.Read(b[:]); err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

func writeBool(buf *bytes.Buffer, v bool) {
	if v {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
}

func readBool(r *bytes.Reader) (bool, error) {
	b, err := r.ReadByte()
	if err != nil {
		return false, err
	}
	return b != 0, nil
}
