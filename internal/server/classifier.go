package server

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/sawpanic/skew/internal/bias"
)

// ErrInvalidHash is returned for job hashes that are not 64 hex characters
var ErrInvalidHash = errors.New("invalid job hash")

// JobHash identifies a piece of content: sha256 over id, underscore, text
func JobHash(id, text string) string {
	h := sha256.New()
	h.Write([]byte(id))
	h.Write([]byte("_"))
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// Classifier assigns a bias reading to a job hash
type Classifier interface {
	Classify(hash string) (bias.Reading, error)
}

// HashClassifier answers from the hash bytes alone. The same content always
// gets the same answer and nothing is stored between requests.
type HashClassifier struct{}

var (
	hashBiases  = []bias.Bias{bias.Neutral, bias.Left, bias.Right}
	hashExtents = []bias.Extent{bias.Minimal, bias.Moderate, bias.Strong, bias.Extreme}
)

// Classify picks the bias from the first hash byte and the extent from the second
func (HashClassifier) Classify(hash string) (bias.Reading, error) {
	sum, err := hex.DecodeString(hash)
	if err != nil || len(sum) != sha256.Size {
		return bias.Reading{}, fmt.Errorf("%w: %q", ErrInvalidHash, hash)
	}

	b := hashBiases[int(sum[0])%len(hashBiases)]
	e := bias.None
	if b != bias.Neutral {
		e = hashExtents[int(sum[1])%len(hashExtents)]
	}

	o, err := bias.Lookup(b, e)
	if err != nil {
		return bias.Reading{}, err
	}
	return bias.Reading{Bias: b, Extent: e, Offset: o}, nil
}
