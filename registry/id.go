package registry

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Entity identifiers are Keccak-256 digests over parentKey‖tag, so a child
// key is re-derivable from its parent and ordinal alone. Ordinals are
// rendered as decimal text; evidence and challenge children carry a
// "Evidence-"/"Challenge-" prefix so siblings of different types never
// collide under the same parent.
//
// Handlers never increment or guess an existing key; they always re-derive
// from the current counters.

// Derive computes the child key of parent under tag.
func Derive(parent []byte, tag []byte) common.Hash {
	return crypto.Keccak256Hash(parent, tag)
}

// RequestID derives the key of request #ordinal of a submission.
func RequestID(submission common.Address, ordinal uint32) common.Hash {
	return Derive(submission.Bytes(), []byte(strconv.FormatUint(uint64(ordinal), 10)))
}

// EvidenceID derives the key of evidence #ordinal of a request.
func EvidenceID(request common.Hash, ordinal uint32) common.Hash {
	return Derive(request.Bytes(), []byte("Evidence-"+strconv.FormatUint(uint64(ordinal), 10)))
}

// ChallengeID derives the key of challenge #ordinal of a request.
func ChallengeID(request common.Hash, ordinal uint32) common.Hash {
	return Derive(request.Bytes(), []byte("Challenge-"+strconv.FormatUint(uint64(ordinal), 10)))
}

// RoundID derives the key of round #ordinal of a challenge.
func RoundID(challenge common.Hash, ordinal uint32) common.Hash {
	return Derive(challenge.Bytes(), []byte(strconv.FormatUint(uint64(ordinal), 10)))
}

// ContributionID derives the key of a contributor's row within a round.
// Identity is (round, contributor): reprocessing a later contribution by the
// same party overwrites the row, it never adds a second one.
func ContributionID(round common.Hash, contributor common.Address) common.Hash {
	return Derive(round.Bytes(), contributor.Bytes())
}
