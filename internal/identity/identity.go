// Package identity derives index document identities and tracks which remote
// file versions were already processed.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// DocumentID returns the hex SHA-256 of "<sourcePath>:<modifiedAt epoch millis>".
// The same file version always maps to the same id; a new version maps to a new one.
func DocumentID(sourcePath string, modifiedAt time.Time) string {
	sum := sha256.Sum256([]byte(sourcePath + ":" + strconv.FormatInt(modifiedAt.UnixMilli(), 10)))
	return hex.EncodeToString(sum[:])
}
