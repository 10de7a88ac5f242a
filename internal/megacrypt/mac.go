package megacrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"

	"github.com/tanq16/linkrelay/internal/utils"
)

// chunkSize returns the size of Mega MAC chunk idx (0-based): 128 KiB steps for
// the first eight chunks, 1 MiB after that.
func chunkSize(idx int) uint64 {
	if idx < 8 {
		return uint64(idx+1) * 0x20000
	}
	return 0x100000
}

// MAC accumulates Mega's condensed file MAC over plaintext written in file
// order. It must see every byte exactly once, starting at offset 0.
type MAC struct {
	block     cipher.Block
	chunkIV   []byte
	chunkEnc  cipher.BlockMode
	metaEnc   cipher.BlockMode
	meta      [blockSize]byte
	last      [blockSize]byte
	buf       [blockSize]byte
	bufLen    int
	scratch   []byte
	chunkIdx  int
	chunkLeft uint64
	open      bool
	written   uint64
}

func NewMAC(params utils.CipherParams) *MAC {
	block, err := aes.NewCipher(params.Key[:])
	if err != nil {
		panic(err)
	}
	iv := make([]byte, blockSize)
	binary.BigEndian.PutUint32(iv[0:], params.IVHigh)
	binary.BigEndian.PutUint32(iv[4:], params.IVLow)
	binary.BigEndian.PutUint32(iv[8:], params.IVHigh)
	binary.BigEndian.PutUint32(iv[12:], params.IVLow)
	return &MAC{
		block:   block,
		chunkIV: iv,
		metaEnc: cipher.NewCBCEncrypter(block, zeroIV),
	}
}

func (m *MAC) Write(p []byte) (int, error) {
	n := len(p)
	for len(p) > 0 {
		if !m.open {
			m.startChunk()
		}
		take := min(uint64(len(p)), m.chunkLeft)
		m.absorb(p[:take])
		m.chunkLeft -= take
		m.written += take
		p = p[take:]
		if m.chunkLeft == 0 {
			m.finishChunk()
		}
	}
	return n, nil
}

// Written returns the number of plaintext bytes absorbed so far.
func (m *MAC) Written() uint64 {
	return m.written
}

func (m *MAC) startChunk() {
	m.chunkLeft = chunkSize(m.chunkIdx)
	m.chunkEnc = cipher.NewCBCEncrypter(m.block, m.chunkIV)
	m.bufLen = 0
	m.open = true
}

func (m *MAC) absorb(p []byte) {
	if m.bufLen > 0 {
		n := copy(m.buf[m.bufLen:], p)
		m.bufLen += n
		p = p[n:]
		if m.bufLen < blockSize {
			return
		}
		m.chunkEnc.CryptBlocks(m.last[:], m.buf[:])
		m.bufLen = 0
	}
	full := len(p) / blockSize * blockSize
	if full > 0 {
		if cap(m.scratch) < full {
			m.scratch = make([]byte, full)
		}
		out := m.scratch[:full]
		m.chunkEnc.CryptBlocks(out, p[:full])
		copy(m.last[:], out[full-blockSize:])
	}
	m.bufLen = copy(m.buf[:], p[full:])
}

func (m *MAC) finishChunk() {
	if m.bufLen > 0 {
		clear(m.buf[m.bufLen:])
		m.chunkEnc.CryptBlocks(m.last[:], m.buf[:])
		m.bufLen = 0
	}
	m.metaEnc.CryptBlocks(m.meta[:], m.last[:])
	m.open = false
	m.chunkIdx++
}

// Sum closes any partial chunk and returns the condensed two-word MAC.
func (m *MAC) Sum() [2]uint32 {
	if m.open {
		m.finishChunk()
	}
	t := bytesToA32(m.meta[:])
	return [2]uint32{t[0] ^ t[1], t[2] ^ t[3]}
}

// Verify compares the condensed MAC against the one carried in the link key.
// An empty file has no chunks and condenses to (0, 0).
func (m *MAC) Verify(expected [2]uint32) error {
	got := m.Sum()
	if got != expected {
		return fmt.Errorf("%w: condensed mac %08x%08x does not match key %08x%08x",
			utils.ErrDecryptionMismatch, got[0], got[1], expected[0], expected[1])
	}
	return nil
}
