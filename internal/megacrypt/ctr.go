package megacrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"

	"github.com/tanq16/linkrelay/internal/utils"
)

const blockSize = aes.BlockSize

// counterFor returns the CTR initial value for the block holding offset.
func counterFor(params utils.CipherParams, offset uint64) []byte {
	block := offset / blockSize
	iv := make([]byte, blockSize)
	binary.BigEndian.PutUint32(iv[0:], params.IVHigh)
	binary.BigEndian.PutUint32(iv[4:], params.IVLow)
	binary.BigEndian.PutUint32(iv[8:], uint32(block>>32))
	binary.BigEndian.PutUint32(iv[12:], uint32(block))
	return iv
}

// DecryptRange decrypts ciphertext that starts at absolute byte offset start.
// No state from earlier ranges is needed; an unaligned start is handled by
// discarding the keystream prefix of the containing block. CTR is symmetric, so
// the same call encrypts.
func DecryptRange(data []byte, params utils.CipherParams, start uint64) []byte {
	block, err := aes.NewCipher(params.Key[:])
	if err != nil {
		// 16-byte keys never fail
		panic(err)
	}
	stream := cipher.NewCTR(block, counterFor(params, start))
	if skip := start % blockSize; skip > 0 {
		discard := make([]byte, skip)
		stream.XORKeyStream(discard, discard)
	}
	out := make([]byte, len(data))
	stream.XORKeyStream(out, data)
	return out
}
