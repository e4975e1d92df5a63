// Package job runs classification as idempotent, cached background work:
// one unit of work per company key, guarded by a source fingerprint.
package job

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/sells-group/classifier-cli/internal/model"
)

// Fingerprint hashes the identity and modification time of every source
// document contributing to a company's text. Inputs are sorted first, so the
// hash is independent of listing order; any addition, removal, or touch of a
// source changes it.
func Fingerprint(sources []model.SourceInput) string {
	lines := make([]string, 0, len(sources))
	for _, src := range sources {
		lines = append(lines, fmt.Sprintf("%s:%d", src.Name, src.ModTime.UTC().UnixNano()))
	}
	sort.Strings(lines)

	sum := sha256.Sum256([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(sum[:])
}
