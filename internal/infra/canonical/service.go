package canonical

import "github.com/ocentra/matchproof/internal/domain"

// Service adapts the package functions to the collaborator interfaces
// the usecases take.
type Service struct{}

func (s *Service) RecordBytes(rec domain.MatchRecord) ([]byte, error) {
	return RecordBytes(rec)
}

func (s *Service) SigningBytes(rec domain.MatchRecord) ([]byte, error) {
	return SigningBytes(rec)
}

func (s *Service) HashHex(data []byte) string {
	return HashHex(data)
}
