package canonical

import "github.com/ocentra/matchproof/internal/domain"

// RecordBytes is the full canonical form of a match record, signatures
// included. The match hash that gets anchored is computed over these
// bytes.
func RecordBytes(rec domain.MatchRecord) ([]byte, error) {
	return Bytes(rec)
}

// SigningBytes is the canonical form players and servers sign: the
// record with the signatures list stripped, since a signature cannot
// cover itself.
func SigningBytes(rec domain.MatchRecord) ([]byte, error) {
	rec.Signatures = nil
	return Bytes(rec)
}

// RecordHash returns the anchored content hash of a match record.
func RecordHash(rec domain.MatchRecord) (string, error) {
	b, err := RecordBytes(rec)
	if err != nil {
		return "", err
	}
	return HashHex(b), nil
}
