package megacrypt

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/json"
	"fmt"
)

var zeroIV = make([]byte, blockSize)

type Attributes struct {
	Name string `json:"n"`
}

// DecryptAttributes decodes the "at" field of a Mega node.
func DecryptAttributes(at string, key [16]byte) (Attributes, error) {
	raw, err := base64Decode(at)
	if err != nil {
		return Attributes{}, fmt.Errorf("attributes are not valid base64: %v", err)
	}
	if len(raw) == 0 || len(raw)%blockSize != 0 {
		return Attributes{}, fmt.Errorf("attributes length %d is not a multiple of %d", len(raw), blockSize)
	}
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return Attributes{}, err
	}
	plain := make([]byte, len(raw))
	cipher.NewCBCDecrypter(block, zeroIV).CryptBlocks(plain, raw)
	plain = bytes.TrimRight(plain, "\x00")
	if !bytes.HasPrefix(plain, []byte("MEGA{")) {
		return Attributes{}, fmt.Errorf("attributes did not decrypt, wrong key")
	}
	var attrs Attributes
	if err := json.Unmarshal(plain[4:], &attrs); err != nil {
		return Attributes{}, fmt.Errorf("error decoding attributes: %v", err)
	}
	return attrs, nil
}

// EncryptAttributes produces an "at" value for attrs.
func EncryptAttributes(attrs Attributes, key [16]byte) (string, error) {
	payload, err := json.Marshal(attrs)
	if err != nil {
		return "", err
	}
	plain := append([]byte("MEGA"), payload...)
	if rem := len(plain) % blockSize; rem != 0 {
		plain = append(plain, make([]byte, blockSize-rem)...)
	}
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return "", err
	}
	out := make([]byte, len(plain))
	cipher.NewCBCEncrypter(block, zeroIV).CryptBlocks(out, plain)
	return base64Encode(out), nil
}
