package merkle

// Service adapts the package functions to the collaborator interfaces
// the usecases take.
type Service struct{}

func (s *Service) Build(leafHexes []string) (*Tree, error) {
	return Build(leafHexes)
}

func (s *Service) VerifyProof(p Proof, rootHex string) (bool, error) {
	return VerifyProof(p, rootHex)
}

// VerifyInclusion rebuilds the tree over leafHexes, proves the leaf at
// leafIndex, and checks both that the leaf matches leafHex and that the
// proof reaches rootHex. This is the whole batched-verification path in
// one call: manifest hashes in, anchored root out.
func (s *Service) VerifyInclusion(leafHexes []string, leafIndex int, leafHex, rootHex string) (bool, error) {
	tree, err := Build(leafHexes)
	if err != nil {
		return false, err
	}
	proof, err := tree.ProofAt(leafIndex)
	if err != nil {
		return false, err
	}
	if proof.LeafHash != leafHex {
		return false, nil
	}
	return VerifyProof(proof, rootHex)
}
