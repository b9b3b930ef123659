package inventory

import (
	"strings"

	"github.com/retail/backend/internal/domain/shared"
)

// Channel is one of the independently stocked sales surfaces
type Channel string

const (
	ChannelPhysical Channel = "PHYSICAL"
	ChannelOnline   Channel = "ONLINE"
)

// Channels lists every sales channel in a stable order
func Channels() []Channel {
	return []Channel{ChannelPhysical, ChannelOnline}
}

// IsValid checks if the channel is known
func (c Channel) IsValid() bool {
	return c == ChannelPhysical || c == ChannelOnline
}

// String returns the string representation
func (c Channel) String() string {
	return string(c)
}

// RestockKind returns the audit kind recorded when stock moves into this channel
func (c Channel) RestockKind() TransactionKind {
	if c == ChannelOnline {
		return TransactionKindRestockOnline
	}
	return TransactionKindRestockPhysical
}

// ParseChannel accepts "physical"/"online" in any case
func ParseChannel(s string) (Channel, error) {
	c := Channel(strings.ToUpper(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", shared.FieldError("channel", "Channel must be PHYSICAL or ONLINE")
	}
	return c, nil
}
