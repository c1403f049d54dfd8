// Package merkle builds the batch trees that let one ledger anchor
// commit to many match hashes. The tree shape is part of the wire
// contract: leaves pair level by level in manifest order, an odd
// trailing node pairs with itself, and a parent is SHA-256(left||right)
// over the raw 32-byte child digests with no added prefix. Any
// implementation that follows these rules derives identical roots.
package merkle

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
)

const HashSize = 32

var (
	ErrEmptyTree      = errors.New("empty merkle tree")
	ErrInvalidHashLen = errors.New("invalid hash length")
	ErrInvalidIndex   = errors.New("invalid leaf index")
	ErrLeafNotFound   = errors.New("leaf not found")
)

func NodeHash(left, right []byte) []byte {
	hasher := sha256.New()
	hasher.Write(left)
	hasher.Write(right)
	return hasher.Sum(nil)
}

// ProofNode is one sibling on the path from a leaf to the root. Left
// reports the sibling's side relative to the running hash.
type ProofNode struct {
	Hash string `json:"hash"`
	Left bool   `json:"left"`
}

type Proof struct {
	MatchID   string      `json:"match_id,omitempty"`
	LeafHash  string      `json:"leaf_hash"`
	LeafIndex int         `json:"leaf_index"`
	Path      []ProofNode `json:"path"`
	Root      string      `json:"root"`
}

// Tree keeps every level so proofs come straight off the built
// structure instead of being recomputed per request.
type Tree struct {
	levels [][][]byte
}

// Build constructs the tree over hex-encoded leaf digests in order.
func Build(leafHexes []string) (*Tree, error) {
	if len(leafHexes) == 0 {
		return nil, ErrEmptyTree
	}
	leaves := make([][]byte, len(leafHexes))
	for i, h := range leafHexes {
		raw, err := decodeHash(h)
		if err != nil {
			return nil, fmt.Errorf("leaf %d: %w", i, err)
		}
		leaves[i] = raw
	}

	levels := [][][]byte{leaves}
	for level := leaves; len(level) > 1; {
		next := make([][]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			left := level[i]
			right := left
			if i+1 < len(level) {
				right = level[i+1]
			}
			next = append(next, NodeHash(left, right))
		}
		levels = append(levels, next)
		level = next
	}
	return &Tree{levels: levels}, nil
}

func (t *Tree) LeafCount() int {
	return len(t.levels[0])
}

func (t *Tree) Root() []byte {
	top := t.levels[len(t.levels)-1]
	return append([]byte(nil), top[0]...)
}

func (t *Tree) RootHex() string {
	return hex.EncodeToString(t.Root())
}

// ProofAt returns the inclusion proof for the leaf at index.
func (t *Tree) ProofAt(index int) (Proof, error) {
	leaves := t.levels[0]
	if index < 0 || index >= len(leaves) {
		return Proof{}, ErrInvalidIndex
	}
	path := make([]ProofNode, 0, len(t.levels)-1)
	idx := index
	for _, level := range t.levels[:len(t.levels)-1] {
		sibling := idx ^ 1
		if sibling >= len(level) {
			// odd trailing node pairs with itself
			sibling = idx
		}
		path = append(path, ProofNode{
			Hash: hex.EncodeToString(level[sibling]),
			Left: idx%2 == 1,
		})
		idx /= 2
	}
	return Proof{
		LeafHash:  hex.EncodeToString(leaves[index]),
		LeafIndex: index,
		Path:      path,
		Root:      t.RootHex(),
	}, nil
}

// ProofFor locates leafHex in the tree and returns its proof tagged
// with matchID.
func (t *Tree) ProofFor(matchID, leafHex string) (Proof, error) {
	raw, err := decodeHash(leafHex)
	if err != nil {
		return Proof{}, err
	}
	for i, leaf := range t.levels[0] {
		if subtle.ConstantTimeCompare(leaf, raw) == 1 {
			proof, err := t.ProofAt(i)
			if err != nil {
				return Proof{}, err
			}
			proof.MatchID = matchID
			return proof, nil
		}
	}
	return Proof{}, ErrLeafNotFound
}

// VerifyProof re-derives the root from the leaf and path and compares
// it against rootHex in constant time. Malformed hashes are errors; a
// clean mismatch is (false, nil).
func VerifyProof(p Proof, rootHex string) (bool, error) {
	current, err := decodeHash(p.LeafHash)
	if err != nil {
		return false, err
	}
	for _, node := range p.Path {
		sibling, err := decodeHash(node.Hash)
		if err != nil {
			return false, err
		}
		if node.Left {
			current = NodeHash(sibling, current)
		} else {
			current = NodeHash(current, sibling)
		}
	}
	expected, err := decodeHash(rootHex)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(current, expected) == 1, nil
}

func decodeHash(h string) ([]byte, error) {
	raw, err := hex.DecodeString(h)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHashLen, err)
	}
	if len(raw) != HashSize {
		return nil, ErrInvalidHashLen
	}
	return raw, nil
}
