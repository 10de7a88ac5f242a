package megacrypt

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/tanq16/linkrelay/internal/utils"
)

var keyReplacer = strings.NewReplacer("+", "-", "/", "_", ",", "", "=", "")

// base64Decode accepts Mega's URL-safe, unpadded base64, tolerating standard
// alphabet characters and stray padding.
func base64Decode(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(keyReplacer.Replace(strings.TrimSpace(s)))
}

func base64Encode(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

func bytesToA32(b []byte) []uint32 {
	out := make([]uint32, (len(b)+3)/4)
	padded := b
	if len(b)%4 != 0 {
		padded = make([]byte, len(out)*4)
		copy(padded, b)
	}
	for i := range out {
		out[i] = binary.BigEndian.Uint32(padded[i*4:])
	}
	return out
}

func a32ToBytes(a []uint32) []byte {
	out := make([]byte, len(a)*4)
	for i, v := range a {
		binary.BigEndian.PutUint32(out[i*4:], v)
	}
	return out
}

// DeriveKey unmasks the eight-word file key carried in a share link.
func DeriveKey(keyMaterial string) (utils.CipherParams, error) {
	raw, err := base64Decode(keyMaterial)
	if err != nil {
		return utils.CipherParams{}, fmt.Errorf("%w: key is not valid base64: %v", utils.ErrMalformedLink, err)
	}
	if len(raw) != 32 {
		return utils.CipherParams{}, fmt.Errorf("%w: key decodes to %d bytes, want 32", utils.ErrMalformedLink, len(raw))
	}
	w := bytesToA32(raw)
	var params utils.CipherParams
	copy(params.Key[:], a32ToBytes([]uint32{w[0] ^ w[4], w[1] ^ w[5], w[2] ^ w[6], w[3] ^ w[7]}))
	params.IVHigh = w[4]
	params.IVLow = w[5]
	params.MetaMAC = [2]uint32{w[6], w[7]}
	return params, nil
}

// EncodeKey is the inverse of DeriveKey and produces link key material.
func EncodeKey(params utils.CipherParams) string {
	k := bytesToA32(params.Key[:])
	w4, w5 := params.IVHigh, params.IVLow
	w6, w7 := params.MetaMAC[0], params.MetaMAC[1]
	return base64Encode(a32ToBytes([]uint32{k[0] ^ w4, k[1] ^ w5, k[2] ^ w6, k[3] ^ w7, w4, w5, w6, w7}))
}
