package preserver

import (
	"encoding/json"
	"fmt"

	operatorerrors "github.com/dc-tec/node-label-preserver/internal/errors"
	"github.com/dc-tec/node-label-preserver/internal/store"
)

// buildRecord builds the backup record for a node's labels. An empty label
// set produces a record without the label field; writing it still replaces
// whatever a prior incarnation stored, so no stale labels survive.
//
// encoding/json marshals maps with sorted keys, so identical label sets
// always produce byte-identical records.
func buildRecord(nodeName string, labels map[string]string) (*store.Record, error) {
	record := &store.Record{NodeName: nodeName}

	if len(labels) == 0 {
		return record, nil
	}

	encoded, err := json.Marshal(labels)
	if err != nil {
		return nil, fmt.Errorf("failed to encode labels for node %s: %w", nodeName, err)
	}
	record.PreservedLabelsJSON = string(encoded)

	return record, nil
}

// decodeRecord extracts the preserved label set from a record. A nil record
// or one without the label field means there is nothing to restore. Malformed
// JSON is a hard error: the record stays in place and restore is retried
// until someone repairs it.
func decodeRecord(record *store.Record) (map[string]string, error) {
	if record == nil || record.PreservedLabelsJSON == "" {
		return nil, nil
	}

	var labels map[string]string
	if err := json.Unmarshal([]byte(record.PreservedLabelsJSON), &labels); err != nil {
		return nil, operatorerrors.WrapDecodeFailure(err)
	}

	return labels, nil
}
