package messaging

import (
	"fmt"
	"strings"
)

// AckMode selects how a delivered message is considered consumed
type AckMode int

const (
	// AckTransacted groups sends and acknowledgments into session transactions
	AckTransacted AckMode = iota
	// AckAuto acknowledges each message automatically on delivery
	AckAuto
	// AckClient requires an explicit acknowledge call per message
	AckClient
	// AckDupsOK acknowledges lazily and tolerates duplicate delivery
	AckDupsOK
)

// String returns the mode name used on the CLI and in config
func (m AckMode) String() string {
	switch m {
	case AckTransacted:
		return "transacted"
	case AckAuto:
		return "auto"
	case AckClient:
		return "client"
	case AckDupsOK:
		return "dups-ok"
	default:
		return fmt.Sprintf("AckMode(%d)", int(m))
	}
}

// AutoAck reports whether the broker acknowledges on delivery for this mode
func (m AckMode) AutoAck() bool {
	return m == AckAuto || m == AckDupsOK
}

// ParseAckMode parses an acknowledgment mode name
func ParseAckMode(s string) (AckMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "transacted":
		return AckTransacted, nil
	case "auto":
		return AckAuto, nil
	case "client":
		return AckClient, nil
	case "dups-ok", "dups_ok", "dupsok":
		return AckDupsOK, nil
	default:
		return 0, fmt.Errorf("messaging: unknown acknowledgment mode %q", s)
	}
}

// DeliveryMode selects durability of sent messages
type DeliveryMode int

const (
	// NonPersistent messages do not survive a broker restart
	NonPersistent DeliveryMode = iota
	// Persistent messages are written to disk by the broker
	Persistent
)

// String returns the mode name used on the CLI and in config
func (m DeliveryMode) String() string {
	switch m {
	case NonPersistent:
		return "non-persistent"
	case Persistent:
		return "persistent"
	default:
		return fmt.Sprintf("DeliveryMode(%d)", int(m))
	}
}

// ParseDeliveryMode parses a delivery mode name
func ParseDeliveryMode(s string) (DeliveryMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "non-persistent", "non_persistent", "nonpersistent":
		return NonPersistent, nil
	case "persistent":
		return Persistent, nil
	default:
		return 0, fmt.Errorf("messaging: unknown delivery mode %q", s)
	}
}
