package proxy

import (
	"context"
	"crypto/cipher"
	"crypto/md5"
	"crypto/sha1"
	"encoding/binary"
	"net"
	"strconv"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/pbkdf2"

	mverrors "github.com/SoheilMV/MVNet/errors"
	"github.com/SoheilMV/MVNet/wire"
)

// Azadi key-derivation parameters, spec.md §4.1 "Azadi".
const (
	azadiPBKDF2Iterations = 1000
	azadiKeyLen           = 32
	azadiNonceLen         = 12
	azadiTagLen           = 16

	azadiReplySuccess = 1
	azadiReplyLogin   = 2
	azadiReplyHost    = 3
	azadiReplyRemote  = 4
)

// azadiDialer implements the experimental authenticated tunnel. The
// fixed nonce (one message per direction, both derived from the same
// PBKDF2 output) is a defect inherited from the source protocol and
// preserved here for wire compatibility — spec.md §9 flags it rather
// than asking us to silently fix it.
type azadiDialer struct {
	cfg Config
}

func (d *azadiDialer) Identity() Identity { return d.cfg.Identity }

func (d *azadiDialer) Dial(ctx context.Context, destHost string, destPort int, connectTimeout, rwTimeout time.Duration) (wire.Stream, error) {
	proxyAddr := net.JoinHostPort(d.cfg.Host, strconv.Itoa(d.cfg.Port))
	stream, err := dialTCPContext(ctx, proxyAddr, connectTimeout)
	if err != nil {
		return nil, err
	}
	if rwTimeout > 0 {
		stream.SetDeadline(time.Now().Add(rwTimeout))
		defer stream.SetDeadline(time.Time{})
	}

	secret := []byte(d.cfg.Secret)
	salt := md5.Sum(secret)
	keyAndNonce := pbkdf2.Key(secret, salt[:], azadiPBKDF2Iterations, azadiKeyLen+azadiNonceLen, sha1.New)
	key := keyAndNonce[:azadiKeyLen]
	nonce := keyAndNonce[azadiKeyLen : azadiKeyLen+azadiNonceLen]

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		stream.Close()
		return nil, mverrors.NewConnectFailure("azadi: bad derived key", err)
	}

	var fields []string
	if d.cfg.Username != "" || d.cfg.Password != "" {
		fields = []string{d.cfg.Username, d.cfg.Password, destHost, strconv.Itoa(destPort)}
	} else {
		fields = []string{destHost, strconv.Itoa(destPort)}
	}
	plaintext := encodeStringArray(fields)
	ciphertext := aead.Seal(nil, nonce, plaintext, nil)

	// Wire framing: tag (16 bytes) || ciphertext. AEAD.Seal appends the
	// tag at the end of its output; re-order to the wire layout.
	msgLen := len(ciphertext)
	body := ciphertext[:msgLen-azadiTagLen]
	tag := ciphertext[msgLen-azadiTagLen:]
	frame := append(append([]byte{}, tag...), body...)

	if _, err := stream.Write(frame); err != nil {
		stream.Close()
		return nil, mverrors.NewConnectFailure("azadi: handshake write failed", err)
	}

	reply, err := readAzadiReply(stream, aead, nonce)
	if err != nil {
		stream.Close()
		return nil, err
	}

	switch reply {
	case azadiReplySuccess:
		return stream, nil
	case azadiReplyLogin:
		stream.Close()
		return nil, mverrors.NewProxyError(mverrors.ProxyAzadiLogin, "azadi: login rejected")
	case azadiReplyHost:
		stream.Close()
		return nil, mverrors.NewProxyError(mverrors.ProxyAzadiHost, "azadi: host rejected")
	case azadiReplyRemote:
		stream.Close()
		return nil, mverrors.NewProxyError(mverrors.ProxyAzadiRemote, "azadi: remote connect failed")
	default:
		stream.Close()
		return nil, mverrors.NewProxyError(mverrors.ProxyAzadiUnknown, "azadi: unrecognized reply code")
	}
}

// readAzadiReply reads the fixed-size response frame (tag || 4-byte
// little-endian ciphertext) and decrypts it under the same fixed nonce
// the request used.
func readAzadiReply(s wire.Stream, aead cipher.AEAD, nonce []byte) (uint32, error) {
	const plainLen = 4
	frame := make([]byte, azadiTagLen+plainLen)
	if err := readFull(s, frame); err != nil {
		return 0, mverrors.NewConnectFailure("azadi: reply read failed", err)
	}
	tag := frame[:azadiTagLen]
	body := frame[azadiTagLen:]
	// Reassemble into the ciphertext||tag order AEAD.Open expects.
	sealed := append(append([]byte{}, body...), tag...)
	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return 0, mverrors.NewConnectFailure("azadi: reply decrypt failed", err)
	}
	return binary.LittleEndian.Uint32(plain), nil
}

// encodeStringArray builds the length-prefixed plaintext layout: a
// 4-byte little-endian count, then each string as a 4-byte little-endian
// length followed by its bytes.
func encodeStringArray(fields []string) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(len(fields)))
	for _, f := range fields {
		lenBuf := make([]byte, 4)
		binary.LittleEndian.PutUint32(lenBuf, uint32(len(f)))
		buf = append(buf, lenBuf...)
		buf = append(buf, f...)
	}
	return buf
}
