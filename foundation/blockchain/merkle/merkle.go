// Copyright 2017 Cameron Bergoon
// https://github.com/cbergoon/merkletree
// Licensed under the MIT License, see LICENCE file for details.
// This code has been cleaned up, refactored, and turned into generics.

// Package merkle provides an implementation of a merkle tree so a batch of
// values can be fingerprinted by a single root and membership of one value
// proven without access to the rest.
package merkle

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ardanlabs/minichain/foundation/blockchain/digest"
)

// ErrNotFound is returned when a value is not a leaf of the tree.
var ErrNotFound = errors.New("unable to find data in tree")

// Hashable represents the behavior concrete data must exhibit to be used in
// the merkle tree.
type Hashable[T any] interface {
	Hash(hasher digest.Hasher) (string, error)
	Equals(other T) bool
}

// Position tells which side of the running hash a proof step sits on.
type Position string

// Set of positions a sibling hash can take.
const (
	Left  Position = "left"
	Right Position = "right"
)

// ProofStep is one sibling hash on the path from a leaf to the root.
type ProofStep struct {
	Hash     string   `json:"hash"`
	Position Position `json:"position"`
}

// =============================================================================

// Tree represents a merkle tree that uses data of some type T that exhibits the
// behavior defined by the Hashable constraint.
type Tree[T Hashable[T]] struct {
	Root       *Node[T]
	Leafs      []*Node[T]
	MerkleRoot string
	hasher     digest.Hasher
}

// WithHasher is used to change the default hashing algorithm of sha256 when
// constructing a new tree.
func WithHasher[T Hashable[T]](hasher digest.Hasher) func(t *Tree[T]) {
	return func(t *Tree[T]) {
		t.hasher = hasher
	}
}

// NewTree constructs a new merkle tree that uses data of some type T that
// exhibits the behavior defined by the Hashable interface.
func NewTree[T Hashable[T]](values []T, options ...func(t *Tree[T])) (*Tree[T], error) {
	t := Tree[T]{
		hasher: digest.Default,
	}

	for _, option := range options {
		option(&t)
	}

	if err := t.Generate(values); err != nil {
		return nil, err
	}

	return &t, nil
}

// Generate constructs the leafs and nodes of the tree from the specified
// data. If the tree has been generated previously, the tree is re-generated
// from scratch. A tree with no values has a root of the hash of nothing.
func (t *Tree[T]) Generate(values []T) error {
	if len(values) == 0 {
		t.Root = &Node[T]{Hash: t.hasher.Sum(nil), leaf: true, Tree: t}
		t.Leafs = nil
		t.MerkleRoot = t.Root.Hash
		return nil
	}

	leafs := make([]*Node[T], 0, len(values)+1)
	for i, value := range values {
		hash, err := value.Hash(t.hasher)
		if err != nil {
			return fmt.Errorf("leaf[%d]: %w", i, err)
		}

		leafs = append(leafs, &Node[T]{
			Hash:  hash,
			Value: value,
			leaf:  true,
			Tree:  t,
		})
	}

	if len(leafs)%2 == 1 {
		last := leafs[len(leafs)-1]
		leafs = append(leafs, &Node[T]{
			Hash:  last.Hash,
			Value: last.Value,
			leaf:  true,
			dup:   true,
			Tree:  t,
		})
	}

	t.Root = buildIntermediate(leafs, t)
	t.Leafs = leafs
	t.MerkleRoot = t.Root.Hash

	return nil
}

// Rebuild is a helper function that will rebuild the tree reusing only the
// data that it currently holds in the leaves.
func (t *Tree[T]) Rebuild() error {
	return t.Generate(t.Values())
}

// Proof returns the sibling hashes on the path from the leaf holding data to
// the root. A step in the left position is concatenated before the running
// hash and a step in the right position after it.
func (t *Tree[T]) Proof(data T) ([]ProofStep, error) {
	for _, node := range t.Leafs {
		if node.dup || !node.Value.Equals(data) {
			continue
		}

		var proof []ProofStep
		for parent := node.Parent; parent != nil; parent = parent.Parent {
			switch {
			case parent.Left == node:
				proof = append(proof, ProofStep{Hash: parent.Right.Hash, Position: Right})
			default:
				proof = append(proof, ProofStep{Hash: parent.Left.Hash, Position: Left})
			}
			node = parent
		}

		return proof, nil
	}

	return nil, ErrNotFound
}

// Verify validates the hashes at each level of the tree and returns an error
// if the resulting hash at the root of the tree does not match the root hash.
func (t *Tree[T]) Verify() error {
	calculated := t.hasher.Sum(nil)
	if len(t.Leafs) > 0 {
		var err error
		if calculated, err = t.Root.verify(); err != nil {
			return err
		}
	}

	if t.MerkleRoot != calculated {
		return errors.New("root hash invalid")
	}

	return nil
}

// VerifyData indicates whether a given piece of data is in the tree and if the
// hashes on its path to the root are valid.
func (t *Tree[T]) VerifyData(data T) error {
	for _, node := range t.Leafs {
		if node.dup || !node.Value.Equals(data) {
			continue
		}

		hash, err := data.Hash(t.hasher)
		if err != nil {
			return err
		}

		proof, err := t.Proof(data)
		if err != nil {
			return err
		}

		if !VerifyProof(t.hasher, hash, proof, t.MerkleRoot) {
			return errors.New("merkle root is not equivalent to the merkle root calculated on the critical path")
		}

		return nil
	}

	return ErrNotFound
}

// Values returns a slice of unique values stores in the tree.
func (t *Tree[T]) Values() []T {
	values := make([]T, 0, len(t.Leafs))
	for _, leaf := range t.Leafs {
		if leaf.dup {
			continue
		}
		values = append(values, leaf.Value)
	}

	return values
}

// Levels returns the hashes of the tree one level at a time starting with the
// leafs and ending with the root.
func (t *Tree[T]) Levels() [][]string {
	if len(t.Leafs) == 0 {
		return [][]string{{t.MerkleRoot}}
	}

	var levels [][]string
	nodes := t.Leafs
	for {
		level := make([]string, len(nodes))
		for i, n := range nodes {
			level[i] = n.Hash
		}
		levels = append(levels, level)

		if len(nodes) == 1 {
			return levels
		}

		var parents []*Node[T]
		for i := 0; i < len(nodes); i += 2 {
			parents = append(parents, nodes[i].Parent)
		}
		nodes = parents
	}
}

// RootHex returns the merkle root hash.
func (t *Tree[T]) RootHex() string {
	return t.MerkleRoot
}

// String returns a string representation of the tree. Only leaf nodes are
// included in the output.
func (t *Tree[T]) String() string {
	var b strings.Builder

	for _, l := range t.Leafs {
		b.WriteString(l.String())
		b.WriteString("\n")
	}

	return b.String()
}

// MarshalText implements the TextMarshaler interface and produces a panic
// if anyone tries to marshal the Merkle tree. I don't want this to happen.
// Use the Values function to return a slice that can be marshaled.
func (t *Tree[T]) MarshalText() (text []byte, err error) {
	panic("do not marshal the merkle tree, use Values")
}

// =============================================================================

// VerifyProof recomputes the root from a leaf hash and its proof. Only the
// leaf hash, the proof and the expected root are required.
func VerifyProof(hasher digest.Hasher, leafHash string, proof []ProofStep, root string) bool {
	current := leafHash
	for _, step := range proof {
		switch step.Position {
		case Left:
			current = hasher.Sum([]byte(step.Hash + current))
		case Right:
			current = hasher.Sum([]byte(current + step.Hash))
		default:
			return false
		}
	}

	return current == root
}

// =============================================================================

// Node represents a node, root, or leaf in the tree. It stores pointers to its
// immediate relationships, a hash, the data if it is a leaf, and other metadata.
type Node[T Hashable[T]] struct {
	Tree   *Tree[T]
	Parent *Node[T]
	Left   *Node[T]
	Right  *Node[T]
	Hash   string
	Value  T
	leaf   bool
	dup    bool
}

// verify walks down the tree until hitting a leaf, calculating the hash at
// each level and returning the resulting hash of the node.
func (n *Node[T]) verify() (string, error) {
	if n.leaf {
		return n.Value.Hash(n.Tree.hasher)
	}

	left, err := n.Left.verify()
	if err != nil {
		return "", err
	}

	right, err := n.Right.verify()
	if err != nil {
		return "", err
	}

	return n.Tree.hasher.Sum([]byte(left + right)), nil
}

// String returns a string representation of the node.
func (n *Node[T]) String() string {
	return fmt.Sprintf("%t %t %s %v", n.leaf, n.dup, n.Hash, n.Value)
}

// =============================================================================

// buildIntermediate is a helper function that for a given list of leaf nodes,
// constructs the intermediate and root levels of the tree. Returns the resulting
// root node of the tree. An odd node out at any level is paired with itself.
func buildIntermediate[T Hashable[T]](nl []*Node[T], t *Tree[T]) *Node[T] {
	var nodes []*Node[T]

	for i := 0; i < len(nl); i += 2 {
		left, right := i, i+1
		if i+1 == len(nl) {
			right = i
		}

		n := Node[T]{
			Left:  nl[left],
			Right: nl[right],
			Hash:  t.hasher.Sum([]byte(nl[left].Hash + nl[right].Hash)),
			Tree:  t,
		}

		nodes = append(nodes, &n)
		nl[left].Parent = &n
		nl[right].Parent = &n

		if len(nl) == 2 {
			return &n
		}
	}

	return buildIntermediate(nodes, t)
}

// =============================================================================

// Text is a Hashable string. Its leaf hash is the digest of its bytes.
type Text string

// Hash implements the Hashable interface.
func (tx Text) Hash(hasher digest.Hasher) (string, error) {
	return hasher.Sum([]byte(tx)), nil
}

// Equals implements the Hashable interface.
func (tx Text) Equals(other Text) bool {
	return tx == other
}
