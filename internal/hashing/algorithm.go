package hashing

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"hash"
	"strconv"
	"strings"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

// Algorithm identifies a digest algorithm.
type Algorithm int

const (
	MD5 Algorithm = iota + 1
	SHA1
	SHA256
	SHA512
	SHA3_256
	BLAKE2b256
	BLAKE3
)

type algorithmInfo struct {
	name   string
	size   int
	broken bool
	newFn  func() hash.Hash
}

var algorithms = map[Algorithm]algorithmInfo{
	MD5:        {name: "MD5", size: md5.Size, broken: true, newFn: md5.New},
	SHA1:       {name: "SHA-1", size: sha1.Size, broken: true, newFn: sha1.New},
	SHA256:     {name: "SHA-256", size: sha256.Size, newFn: sha256.New},
	SHA512:     {name: "SHA-512", size: sha512.Size, newFn: sha512.New},
	SHA3_256:   {name: "SHA3-256", size: 32, newFn: sha3.New256},
	BLAKE2b256: {name: "BLAKE2b-256", size: blake2b.Size256, newFn: newBLAKE2b256},
	BLAKE3:     {name: "BLAKE3", size: 32, newFn: func() hash.Hash { return blake3.New() }},
}

// Algorithms returns every supported algorithm in declaration order.
func Algorithms() []Algorithm {
	return []Algorithm{MD5, SHA1, SHA256, SHA512, SHA3_256, BLAKE2b256, BLAKE3}
}

// ParseAlgorithm resolves a name such as "sha1", "SHA-1" or "blake2b-256".
func ParseAlgorithm(name string) (Algorithm, error) {
	key := normalizeName(name)
	for _, alg := range Algorithms() {
		if normalizeName(algorithms[alg].name) == key {
			return alg, nil
		}
	}
	return 0, &UnsupportedAlgorithmError{Name: name}
}

func normalizeName(name string) string {
	name = strings.ToUpper(strings.TrimSpace(name))
	return strings.NewReplacer("-", "", "_", "").Replace(name)
}

// String returns the canonical algorithm name.
func (a Algorithm) String() string {
	if info, ok := algorithms[a]; ok {
		return info.name
	}
	return "Algorithm(" + strconv.Itoa(int(a)) + ")"
}

// Valid reports whether a is a supported algorithm.
func (a Algorithm) Valid() bool {
	_, ok := algorithms[a]
	return ok
}

// Size returns the digest length in bytes, or 0 for an unsupported algorithm.
func (a Algorithm) Size() int {
	return algorithms[a].size
}

// Broken reports whether the algorithm is unfit for adversarial integrity checks.
// MD5 and SHA-1 have practical collision attacks.
func (a Algorithm) Broken() bool {
	return algorithms[a].broken
}

// New returns a fresh accumulator for a.
func (a Algorithm) New() (hash.Hash, error) {
	info, ok := algorithms[a]
	if !ok {
		return nil, &UnsupportedAlgorithmError{Name: a.String()}
	}
	return info.newFn(), nil
}

// MarshalText implements encoding.TextMarshaler.
func (a Algorithm) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, &UnsupportedAlgorithmError{Name: a.String()}
	}
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Algorithm) UnmarshalText(text []byte) error {
	alg, err := ParseAlgorithm(string(text))
	if err != nil {
		return err
	}
	*a = alg
	return nil
}

func newBLAKE2b256() hash.Hash {
	// Only errors on an oversized key.
	h, _ := blake2b.New256(nil)
	return h
}
