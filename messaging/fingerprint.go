package messaging

import (
	"fmt"
	"hash/fnv"
)

// Fingerprint returns the fixed-width hexadecimal content fingerprint of a
// message payload. It is a 32-bit FNV-1a sum used only to correlate send and
// receive log records; it carries no integrity guarantee.
func Fingerprint(text string) string {
	h := fnv.New32a()
	h.Write([]byte(text))
	return fmt.Sprintf("%08X", h.Sum32())
}
