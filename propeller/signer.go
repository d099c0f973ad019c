package propeller

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"

	"github.com/starkware-libs/sequencer-sub006/ids"
)

// Signer produces a unit's authenticator; Verifier checks one. Real
// signature schemes (§1, ECIES-style committee encryption territory) are
// an external concern consumed only through these narrow interfaces.
type Signer interface {
	Sign(payload []byte) Signature
}

type Verifier interface {
	Verify(signer ids.ValidatorId, payload []byte, sig Signature) bool
}

// xxhashSigner is a non-cryptographic placeholder: the "signature" is a
// keyed xxhash MAC over the payload, tagged with the signer's identity.
// Anyone can forge it; real signing belongs to an external key-management
// component (§1), same placeholder posture as patricia/hash.go.
type xxhashSigner struct {
	self ids.ValidatorId
}

// NewPlaceholderSigner returns the placeholder Signer for self.
func NewPlaceholderSigner(self ids.ValidatorId) Signer { return xxhashSigner{self: self} }

func (s xxhashSigner) Sign(payload []byte) Signature {
	return macFor(s.self, payload)
}

// xxhashVerifier is the matching placeholder Verifier.
type xxhashVerifier struct{}

// NewPlaceholderVerifier returns the placeholder Verifier.
func NewPlaceholderVerifier() Verifier { return xxhashVerifier{} }

func (xxhashVerifier) Verify(signer ids.ValidatorId, payload []byte, sig Signature) bool {
	want := macFor(signer, payload)
	if len(want) != len(sig) {
		return false
	}
	for i := range want {
		if want[i] != sig[i] {
			return false
		}
	}
	return true
}

func macFor(signer ids.ValidatorId, payload []byte) Signature {
	d := xxhash.New()
	_, _ = d.Write([]byte(signer))
	_, _ = d.Write([]byte{0})
	_, _ = d.Write(payload)
	out := make([]byte, 8)
	binary.LittleEndian.PutUint64(out, d.Sum64())
	return out
}
