package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/interview-prep/internal/model"
)

// ContentHash fingerprints an email by its normalized subject and body.
// Headers, IDs and whitespace differences do not change the hash.
func ContentHash(em model.Email) string {
	h := sha256.New()
	h.Write([]byte(canonical(em.Subject)))
	h.Write([]byte{0})
	h.Write([]byte(canonical(em.Body)))
	return hex.EncodeToString(h.Sum(nil))
}

func canonical(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}
