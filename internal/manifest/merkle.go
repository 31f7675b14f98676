package manifest

import "github.com/quantarax/filehash/internal/hashing"

// MerkleRoot computes the Merkle root of leaf digests with alg.
// Parents are alg(left || right); an odd node is paired with itself.
func MerkleRoot(alg hashing.Algorithm, leaves [][]byte) ([]byte, error) {
	if len(leaves) == 0 {
		return nil, nil
	}

	level := leaves
	for len(level) > 1 {
		next := make([][]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			right := level[i]
			if i+1 < len(level) {
				right = level[i+1]
			}
			h, err := alg.New()
			if err != nil {
				return nil, err
			}
			h.Write(level[i])
			h.Write(right)
			next = append(next, h.Sum(nil))
		}
		level = next
	}
	return level[0], nil
}
