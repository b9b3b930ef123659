package sales

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/retail/backend/internal/domain/inventory"
	"github.com/retail/backend/internal/domain/shared"
)

const serialDateLayout = "20060102"

// SerialPrefix returns the serial number prefix of a channel
func SerialPrefix(channel inventory.Channel) string {
	if channel == inventory.ChannelOnline {
		return "ONL"
	}
	return "POS"
}

// FormatSerialNumber renders e.g. POS-20260315-0007. The sequence restarts every day.
func FormatSerialNumber(channel inventory.Channel, day time.Time, seq int) string {
	return fmt.Sprintf("%s-%s-%04d", SerialPrefix(channel), day.Format(serialDateLayout), seq)
}

// ParseSerialNumber splits a serial number into its channel, day and sequence
func ParseSerialNumber(serial string) (inventory.Channel, time.Time, int, error) {
	invalid := shared.FieldError("serial_number", "Invalid serial number: "+serial)

	parts := strings.Split(serial, "-")
	if len(parts) != 3 {
		return "", time.Time{}, 0, invalid
	}

	var channel inventory.Channel
	switch parts[0] {
	case "POS":
		channel = inventory.ChannelPhysical
	case "ONL":
		channel = inventory.ChannelOnline
	default:
		return "", time.Time{}, 0, invalid
	}

	day, err := time.Parse(serialDateLayout, parts[1])
	if err != nil {
		return "", time.Time{}, 0, invalid
	}
	seq, err := strconv.Atoi(parts[2])
	if err != nil || seq <= 0 {
		return "", time.Time{}, 0, invalid
	}
	return channel, day, seq, nil
}
