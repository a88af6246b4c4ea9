// Package preserver implements the label backup and restore policies: the
// snapshot taken when a node leaves the cluster and the fill-if-absent merge
// applied when a node with the same name rejoins.
package preserver

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/dc-tec/node-label-preserver/internal/constants"
)

// BackupKey derives the store key for a node name.
//
// Node names are DNS subdomains of up to 253 bytes; combined with a prefix
// they can exceed the key length limits of the store backends (a ConfigMap
// name tops out at 253 characters). Hashing gives a constant-length,
// charset-safe, effectively collision-free key, and the same name always maps
// to the same key so backups survive across incarnations.
func BackupKey(nodeName string) string {
	digest := sha256.Sum256([]byte(nodeName))
	return constants.BackupKeyPrefix + hex.EncodeToString(digest[:])
}
