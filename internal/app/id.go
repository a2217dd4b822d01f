package app

import "crypto/rand"

// generateID produces a prefixed random hex identifier, e.g. "tnt_4af2...".
// The prefix makes ids self-describing in logs and job payloads.
func generateID(prefix string) (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	const hex = "0123456789abcdef"
	out := make([]byte, 32)
	for i, v := range b {
		out[i*2] = hex[v>>4]
		out[i*2+1] = hex[v&0x0f]
	}
	return prefix + "_" + string(out), nil
}
