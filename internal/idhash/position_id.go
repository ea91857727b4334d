// Package idhash derives deterministic identifiers from their inputs so
// replays of the same history produce the same ids.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"trend-edge-lab/internal/domain"
)

// positionIDLen is the number of hex characters kept from the digest.
const positionIDLen = 16

// ComputePositionID computes a deterministic position id.
// Formula: SHA256(run_id|symbol|side|bar_ts), truncated to 16 hex characters.
func ComputePositionID(runID, symbol string, side domain.Signal, barTs int64) string {
	data := fmt.Sprintf("%s|%s|%s|%d", runID, symbol, side, barTs)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])[:positionIDLen]
}

// ComputeRunID computes a deterministic run id for a replay.
// Formula: SHA256(symbol|interval|model|first_ts|last_ts|config_digest).
// Returns hex-encoded hash (64 characters).
func ComputeRunID(symbol, interval string, model domain.ModelType, firstTs, lastTs int64, configDigest string) string {
	data := fmt.Sprintf("%s|%s|%s|%d|%d|%s", symbol, interval, model, firstTs, lastTs, configDigest)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
