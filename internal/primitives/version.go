package primitives

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"
)

// ComputeVersion computes a deterministic version for v.
// SHA256(v JSON)[:8]; values that cannot be marshaled fall back to a timestamp.
func ComputeVersion(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("invalid-%d", time.Now().Unix())
	}

	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash[:8])
}
