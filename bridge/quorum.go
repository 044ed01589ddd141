package bridge

import (
	"math/big"

	errorsmod "cosmossdk.io/errors"

	"bridge-project/models"
	"bridge-project/repository"
	"bridge-project/sigs"
)

// QuorumVerifier decides whether an aggregate signature over a record digest
// carries enough relayer weight to be trusted.
type QuorumVerifier interface {
	VerifyQuorum(repo *repository.Repository, digest string, approval models.AggregateSignature) error
}

// StakeQuorum accepts an approval when unique registered relayers with valid
// signatures hold strictly more than Numerator/Denominator of the total
// registered stake.
type StakeQuorum struct {
	verifier    sigs.Verifier
	Numerator   int64
	Denominator int64
}

var _ QuorumVerifier = (*StakeQuorum)(nil)

// NewTwoThirdsQuorum returns the quorum rule relayer approvals are held to.
func NewTwoThirdsQuorum(verifier sigs.Verifier) *StakeQuorum {
	return &StakeQuorum{verifier: verifier, Numerator: 2, Denominator: 3}
}

func (q *StakeQuorum) VerifyQuorum(repo *repository.Repository, digest string, approval models.AggregateSignature) error {
	if len(approval) == 0 {
		return errorsmod.Wrapf(models.ErrQuorumNotReached, "record %s: approval carries no signatures", digest)
	}

	relayers, err := repo.Relayers()
	if err != nil {
		return err
	}
	stakes := make(map[string]uint64, len(relayers))
	total := new(big.Int)
	for _, rl := range relayers {
		stakes[rl.Address] = rl.Stake
		total.Add(total, new(big.Int).SetUint64(rl.Stake))
	}

	seen := make(map[string]bool, len(approval))
	signed := new(big.Int)
	for i, part := range approval {
		if seen[part.Relayer] {
			return errorsmod.Wrapf(models.ErrQuorumNotReached, "record %s: duplicate signer %s", digest, part.Relayer)
		}
		seen[part.Relayer] = true

		stake, ok := stakes[part.Relayer]
		if !ok {
			return errorsmod.Wrapf(models.ErrQuorumNotReached, "record %s: signer %s is not a registered relayer", digest, part.Relayer)
		}
		key, err := repo.PublicKey(part.Relayer)
		if err != nil {
			return errorsmod.Wrapf(models.ErrQuorumNotReached, "record %s: relayer %s has no registered public key", digest, part.Relayer)
		}
		if !sigs.VerifyHex(q.verifier, []byte(digest), part.Signature, key) {
			return errorsmod.Wrapf(models.ErrQuorumNotReached, "record %s: signature %d from %s does not verify", digest, i, part.Relayer)
		}
		signed.Add(signed, new(big.Int).SetUint64(stake))
	}

	// signed/total > n/d  <=>  signed*d > total*n
	lhs := new(big.Int).Mul(signed, big.NewInt(q.Denominator))
	rhs := new(big.Int).Mul(total, big.NewInt(q.Numerator))
	if lhs.Cmp(rhs) <= 0 {
		return errorsmod.Wrapf(models.ErrQuorumNotReached, "record %s: signing stake %s of %s does not exceed %d/%d",
			digest, signed, total, q.Numerator, q.Denominator)
	}
	return nil
}
