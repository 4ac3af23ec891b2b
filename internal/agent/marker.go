package agent

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/hcplus/scheduling-agent/internal/scheduling"
)

// Side-channel markers embedded in model text. Tool outcomes are the primary
// transport for booking facts; the markers remain for prompt compatibility
// and so stray marker text never reaches the patient.
const (
	bookingMarkerPrefix = "BOOKING_DATA:"
	cancelMarkerPrefix  = "CANCELLED_BOOKING:"
)

var (
	// Non-greedy so two adjacent markers don't merge into one match. The (?s)
	// flag lets the JSON span lines.
	bookingMarkerRe = regexp.MustCompile(`(?s)BOOKING_DATA:\s*(\{.*?\})`)
	cancelMarkerRe  = regexp.MustCompile(`CANCELLED_BOOKING:\s*([0-9A-Za-z-]+)`)
)

// EncodeBookingMarker renders a booking record as a side-channel marker.
func EncodeBookingMarker(record scheduling.BookingRecord) (string, error) {
	payload, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("agent: failed to encode booking marker: %w", err)
	}
	return bookingMarkerPrefix + " " + string(payload), nil
}

// EncodeCancellationMarker renders a cancelled booking id as a marker.
func EncodeCancellationMarker(bookingUUID string) string {
	return cancelMarkerPrefix + " " + bookingUUID
}

// DecodedMarkers is the result of scanning model text for side-channel
// markers.
type DecodedMarkers struct {
	// Text is the input with every marker stripped, whether or not it parsed.
	Text string
	// Booking is the decoded booking record, if a well-formed booking marker
	// was present. Booking markers are decoded before cancellation markers.
	Booking *scheduling.BookingRecord
	// CancelledBookingUUID is set when a cancellation marker was present.
	CancelledBookingUUID string
}

// DecodeMarkers strips side-channel markers out of model text and returns
// whatever facts they carried. Malformed booking JSON is swallowed: the
// marker is still removed so broken payloads never reach the patient, but no
// booking record is returned.
func DecodeMarkers(text string) DecodedMarkers {
	decoded := DecodedMarkers{}

	if match := bookingMarkerRe.FindStringSubmatch(text); match != nil {
		var record scheduling.BookingRecord
		if err := json.Unmarshal([]byte(match[1]), &record); err == nil {
			decoded.Booking = &record
		}
	}
	text = bookingMarkerRe.ReplaceAllString(text, "")
	// A booking marker with unbalanced JSON escapes the regex above; drop
	// everything from the prefix to the end of the line so it cannot leak.
	text = stripDanglingMarker(text, bookingMarkerPrefix)

	if match := cancelMarkerRe.FindStringSubmatch(text); match != nil {
		decoded.CancelledBookingUUID = match[1]
	}
	text = cancelMarkerRe.ReplaceAllString(text, "")
	text = stripDanglingMarker(text, cancelMarkerPrefix)

	decoded.Text = strings.TrimSpace(text)
	return decoded
}

func stripDanglingMarker(text, prefix string) string {
	idx := strings.Index(text, prefix)
	if idx < 0 {
		return text
	}
	end := strings.IndexByte(text[idx:], '\n')
	if end < 0 {
		return text[:idx]
	}
	return text[:idx] + text[idx+end:]
}
