package hasher

import (
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// MaxLevel bounds the zero-hash table. Trees in this service are height 20;
// the extra headroom costs nothing.
const MaxLevel = 32

// Digest is a 32-byte big-endian BN254 scalar field element. The zero value
// is the field's zero, which doubles as the canonical empty-leaf value.
type Digest [32]byte

// Hex renders the digest as a 0x-prefixed, zero-padded 64-char hex string.
func (d Digest) Hex() string {
	return hexutil.Encode(d[:])
}

// IsZero reports whether the digest is the field zero.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// FromHex parses a 0x-prefixed hex string into a digest, reducing the value
// into the field. Inputs longer than 32 bytes are rejected rather than
// truncated.
func FromHex(s string) (Digest, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return Digest{}, fmt.Errorf("hex value missing 0x prefix: %q", s)
	}
	raw := s[2:]
	if len(raw) == 0 || len(raw) > 64 {
		return Digest{}, fmt.Errorf("hex value must be 1..64 hex chars, got %d", len(raw))
	}
	// big.Int.SetString also accepts signs and separators; only hex digits
	// may reach it.
	for _, c := range raw {
		if !isHexDigit(c) {
			return Digest{}, fmt.Errorf("invalid hex value: %q", s)
		}
	}
	v, ok := new(big.Int).SetString(raw, 16)
	if !ok {
		return Digest{}, fmt.Errorf("invalid hex value: %q", s)
	}
	var el fr.Element
	el.SetBigInt(v)
	return Digest(el.Bytes()), nil
}

func isHexDigit(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// FromUint64 lifts an integer into the field.
func FromUint64(v uint64) Digest {
	el := fr.NewElement(v)
	return Digest(el.Bytes())
}

// Compress2 is the tree's node compression: MiMC over the ordered pair.
// Compress2(a, b) != Compress2(b, a) for a != b, which the tree relies on to
// bind child positions.
func Compress2(a, b Digest) Digest {
	h := mimc.NewMiMC()
	h.Write(a[:])
	h.Write(b[:])
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}

// Compress4 compresses four field elements in one MiMC sponge pass.
func Compress4(a, b, c, d Digest) Digest {
	h := mimc.NewMiMC()
	h.Write(a[:])
	h.Write(b[:])
	h.Write(c[:])
	h.Write(d[:])
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}

// LeafHash binds a commitment to its contract-assigned leaf index.
func LeafHash(commitment Digest, index uint64) Digest {
	return Compress2(commitment, FromUint64(index))
}

var (
	zeroOnce   sync.Once
	zeroHashes [MaxLevel + 1]Digest
)

// ZeroHash returns the hash of a fully empty subtree of the given height.
// Level 0 is the empty leaf (field zero); each level above is the
// compression of two copies of the level below. Panics on a level outside
// the table, which is a programming error, not an input error.
func ZeroHash(level int) Digest {
	if level < 0 || level > MaxLevel {
		panic(fmt.Sprintf("zero hash level out of range: %d", level))
	}
	zeroOnce.Do(func() {
		for i := 1; i <= MaxLevel; i++ {
			zeroHashes[i] = Compress2(zeroHashes[i-1], zeroHashes[i-1])
		}
	})
	return zeroHashes[level]
}

// ChainRoot reproduces the deployed contract's accumulator: a keccak256
// hash chain over raw bytes, not a field element. It exists only so
// operators can eyeball the on-chain value next to ours; the two
// accumulators use different algorithms and their roots are never equal or
// comparable.
func ChainRoot(prev, commitment Digest) Digest {
	var out Digest
	copy(out[:], crypto.Keccak256(prev[:], commitment[:]))
	return out
}
