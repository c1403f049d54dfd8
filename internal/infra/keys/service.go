package keys

import "github.com/ocentra/matchproof/internal/domain"

// Service adapts the package functions to the collaborator interfaces
// the usecases take.
type Service struct{}

func (s *Service) Verify(rec domain.SignatureRecord, canonicalBytes []byte) bool {
	return Verify(rec, canonicalBytes)
}
