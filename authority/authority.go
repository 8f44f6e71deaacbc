// Package authority checks transaction signatures against the
// authorizations declared on a transaction's actions. It uses
// go-ethereum's crypto package — the same ECDSA recovery primitive used
// elsewhere for block signing — and validatorpk's (type, raw-bytes) key
// encoding for the recovered keys.
package authority

import (
	"errors"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/asset-chain/chain-controller/chaintypes"
	"github.com/asset-chain/chain-controller/inter/validatorpk"
)

// ErrMissingSigs is returned when a transaction's declared authorizations
// are not all covered by its recovered signing keys.
var ErrMissingSigs = errors.New("authority: transaction is missing required signatures")

// ErrIrrelevantSig is returned when a transaction carries a signature that
// does not correspond to any required key
var ErrIrrelevantSig = errors.New("authority: transaction carries a signature not required by any authorization")

// KeyResolver maps an (actor, permission) authorization to the set of
// public keys that satisfy it. A real deployment backs this with the
// account/permission system contract's tables; tests can supply a static
// map.
type KeyResolver interface {
	RequiredKeys(actor, permission string) ([]validatorpk.PubKey, error)
}

// StaticResolver is a KeyResolver backed by a fixed map, used by fakes and
// tests: the "producers" account authority, for example, is naturally
// static between schedule changes.
type StaticResolver map[string][]validatorpk.PubKey

func (r StaticResolver) RequiredKeys(actor, permission string) ([]validatorpk.PubKey, error) {
	keys, ok := r[actor+"@"+permission]
	if !ok {
		return nil, nil
	}
	return keys, nil
}

// RecoverSignerKeys recovers one validatorpk.PubKey per signature in trx,
// over the transaction's signing digest (which excludes the signatures
// themselves), the Go equivalent of transaction::get_signature_keys.
func RecoverSignerKeys(trx *chaintypes.Transaction) ([]validatorpk.PubKey, error) {
	digest := trx.SigningDigest()
	keys := make([]validatorpk.PubKey, 0, len(trx.Signatures))
	for _, sig := range trx.Signatures {
		pub, err := crypto.SigToPub(digest[:], sig)
		if err != nil {
			return nil, err
		}
		keys = append(keys, validatorpk.PubKey{
			Type: validatorpk.Types.Secp256k1,
			Raw:  crypto.CompressPubkey(pub),
		})
	}
	return keys, nil
}

// CheckTransactionAuthorization verifies that every (actor, permission)
// pair declared across trx's actions is covered by at least one of trx's
// recovered signing keys, and — unless allowUnusedSignatures is set —
// that every recovered key was required by some authorization. Grounded on
// check_transaction_authorization/check_authorization in the original
// source.
func CheckTransactionAuthorization(resolver KeyResolver, trx *chaintypes.Transaction, allowUnusedSignatures bool) error {
	signerKeys, err := RecoverSignerKeys(trx)
	if err != nil {
		return err
	}
	used := make([]bool, len(signerKeys))

	for _, action := range trx.Actions {
		for _, auth := range action.Authorization {
			required, err := resolver.RequiredKeys(auth.Actor, auth.Permission)
			if err != nil {
				return err
			}
			if !satisfiedBy(required, signerKeys, used) {
				return ErrMissingSigs
			}
		}
	}

	if !allowUnusedSignatures {
		for i, u := range used {
			if !u {
				_ = i
				return ErrIrrelevantSig
			}
		}
	}
	return nil
}

// satisfiedBy reports whether at least one key in required is present in
// signerKeys, marking the first such match used.
func satisfiedBy(required, signerKeys []validatorpk.PubKey, used []bool) bool {
	if len(required) == 0 {
		return true // no authority declared for this permission: nothing to check
	}
	for _, req := range required {
		for i, signed := range signerKeys {
			if req.String() == signed.String() {
				used[i] = true
				return true
			}
		}
	}
	return false
}

// CheckProducerSignature verifies a block's Signature recovers to one of
// the schedule's declared producer keys for Producer. Used by the block
// processor's validate_block_header equivalent.
func CheckProducerSignature(schedule chaintypes.ProducerSchedule, producer string, digest [32]byte, sig []byte) error {
	pub, err := crypto.SigToPub(digest[:], sig)
	if err != nil {
		return err
	}
	got := crypto.CompressPubkey(pub)
	for _, p := range schedule.Producers {
		if p.ProducerName == producer {
			if string(p.SigningKey) == string(got) {
				return nil
			}
			return errors.New("authority: block signature does not match producer's signing key")
		}
	}
	return errors.New("authority: producer not found in active schedule")
}
