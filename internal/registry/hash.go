package registry

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/sha3"

	dErrors "github.com/millisami/flow-name-service/pkg/domain-errors"
)

// forbiddenChars are rejected anywhere in a name before hashing. The set
// matches what the registrar refuses to sell: punctuation that collides
// with path and URL syntax, and whitespace.
const forbiddenChars = "!@#$%^&*()<>? ./"

// Hash validates a name and returns its registry key: the hex-encoded
// SHA3-256 digest of the name. Deterministic and total over the validated
// input domain.
func Hash(name string) (string, error) {
	if strings.ContainsAny(name, forbiddenChars) {
		return "", dErrors.Newf(dErrors.CodeValidation, "name %q contains a forbidden character", name)
	}
	digest := sha3.Sum256([]byte(name))
	return hex.EncodeToString(digest[:]), nil
}
