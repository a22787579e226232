package validator

import (
	"math/bits"

	"github.com/dario-ramos/bitprim-blockchain/chaincfg/chainhash"
	"github.com/dario-ramos/bitprim-blockchain/core"
)

// rollingMerkleTreeStore computes a merkle root without materializing the
// full tree, folding leaves into partial roots as they arrive.
type rollingMerkleTreeStore struct {
	roots     []chainhash.Hash
	numLeaves uint64
}

// CalcMerkleRoot computes the merkle root over transactions, in the order
// they appear in the block.
func CalcMerkleRoot(transactions []*core.Tx) chainhash.Hash {
	var alloc int
	if n := uint64(len(transactions)); n != 0 {
		alloc = bits.Len64(n - 1)
	}
	s := rollingMerkleTreeStore{roots: make([]chainhash.Hash, 0, alloc)}

	for _, tx := range transactions {
		s.add(*tx.Hash())
	}
	if s.numLeaves == 1 {
		return s.roots[0]
	}
	if len(transactions) > 0 && len(transactions)%2 != 0 {
		s.add(*transactions[len(transactions)-1].Hash())
	}
	for len(s.roots) > 1 {
		currentLeaves := s.numLeaves
		for h := uint8(0); (currentLeaves>>h)&1 == 0; h++ {
			s.numLeaves >>= 1
		}
		s.add(s.roots[len(s.roots)-1])
	}
	return s.roots[0]
}

func (s *rollingMerkleTreeStore) add(leaf chainhash.Hash) {
	newRoot := leaf
	for h := uint8(0); (s.numLeaves>>h)&1 == 1; h++ {
		var root chainhash.Hash
		root, s.roots = s.roots[len(s.roots)-1], s.roots[:len(s.roots)-1]
		newRoot = hashMerkleBranches(root, newRoot)
	}
	s.roots = append(s.roots, newRoot)
	s.numLeaves++
}

func hashMerkleBranches(left, right chainhash.Hash) chainhash.Hash {
	var buf [chainhash.HashSize * 2]byte
	copy(buf[:chainhash.HashSize], left[:])
	copy(buf[chainhash.HashSize:], right[:])
	return chainhash.DoubleHashH(buf[:])
}
