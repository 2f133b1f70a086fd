// Package verify computes supplementary, non-authoritative content digests
// for --verify-digests. git-annex has already verified the file against
// the key it minted by the time this runs; these digests exist purely as
// extra diagnostic data in the debug log; they are never compared
// against anything and never fail a download.
//
// Grounded on the teacher's sibling module Archive-Hasher/Archive-Hasher.go
// (HashResult's multi-algorithm hashing), narrowed to the three algorithms
// SPEC_FULL.md wires: blake3, xxh3, and murmur3. The rest of that module's
// digests (SHA3, Whirlpool, RIPEMD160, Blake2b, KangarooTwelve) and its GPG
// signing step have no home in this repo — see DESIGN.md.
package verify

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spaolacci/murmur3"
	"github.com/zeebo/xxh3"
	"lukechampine.com/blake3"
)

// Digests holds the supplementary digests computed for one file.
type Digests struct {
	Blake3  string
	XXH3    string
	Murmur3 string
}

// File reads path once and computes all three digests from that single
// pass.
func File(path string) (Digests, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Digests{}, fmt.Errorf("verify: read %s: %w", path, err)
	}

	blake3Hasher := blake3.New(32, nil)
	blake3Hasher.Write(data)

	murmur3Hasher := murmur3.New128()
	murmur3Hasher.Write(data)

	return Digests{
		Blake3:  hex.EncodeToString(blake3Hasher.Sum(nil)),
		XXH3:    fmt.Sprintf("%016x", xxh3.Hash(data)),
		Murmur3: hex.EncodeToString(murmur3Hasher.Sum(nil)),
	}, nil
}

// LogFields renders the digests as alternating key/value pairs suitable for
// slog.Logger.Debug's variadic args.
func (d Digests) LogFields() []any {
	return []any{"blake3", d.Blake3, "xxh3", d.XXH3, "murmur3", d.Murmur3}
}
