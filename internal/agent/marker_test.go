package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hcplus/scheduling-agent/internal/scheduling"
)

func TestMarkerRoundTrip(t *testing.T) {
	record := scheduling.BookingRecord{
		BookingUUID:  "inv-123",
		EventURI:     "https://api.calendly.com/scheduled_events/evt-123",
		Status:       "active",
		PatientName:  "Jane Doe",
		PatientEmail: "jane@example.com",
		SlotTime:     "2026-03-10 9:30 AM",
	}

	marker, err := EncodeBookingMarker(record)
	require.NoError(t, err)

	decoded := DecodeMarkers("Your appointment is confirmed!\n\n" + marker)
	require.NotNil(t, decoded.Booking)
	assert.Equal(t, record, *decoded.Booking)
	assert.Equal(t, "Your appointment is confirmed!", decoded.Text)
	assert.NotContains(t, decoded.Text, "BOOKING_DATA")
}

func TestDecodeCancellationMarker(t *testing.T) {
	decoded := DecodeMarkers("Your appointment has been cancelled. " + EncodeCancellationMarker("inv-123"))

	assert.Equal(t, "inv-123", decoded.CancelledBookingUUID)
	assert.Nil(t, decoded.Booking)
	assert.Equal(t, "Your appointment has been cancelled.", decoded.Text)
}

func TestDecodeMalformedBookingJSONIsSwallowed(t *testing.T) {
	decoded := DecodeMarkers(`All set! BOOKING_DATA: {"booking_uuid": "inv-123",}`)

	assert.Nil(t, decoded.Booking)
	assert.NotContains(t, decoded.Text, "BOOKING_DATA")
	assert.NotContains(t, decoded.Text, "inv-123")
	assert.Equal(t, "All set!", decoded.Text)
}

func TestDecodeDanglingBookingMarkerIsStripped(t *testing.T) {
	decoded := DecodeMarkers("Done.\nBOOKING_DATA: {\"booking_uuid\": \"inv-123\"\nAnything else?")

	assert.Nil(t, decoded.Booking)
	assert.NotContains(t, decoded.Text, "BOOKING_DATA")
	assert.Contains(t, decoded.Text, "Done.")
}

func TestDecodeBookingWinsOverCancellation(t *testing.T) {
	text := `BOOKING_DATA: {"booking_uuid":"inv-9"} CANCELLED_BOOKING: inv-1`
	decoded := DecodeMarkers(text)

	require.NotNil(t, decoded.Booking)
	assert.Equal(t, "inv-9", decoded.Booking.BookingUUID)
	assert.Equal(t, "inv-1", decoded.CancelledBookingUUID)
	assert.Empty(t, decoded.Text)
}

func TestDecodePlainTextUntouched(t *testing.T) {
	decoded := DecodeMarkers("We have slots on Tuesday at 9:30 AM and 10:00 AM.")

	assert.Nil(t, decoded.Booking)
	assert.Empty(t, decoded.CancelledBookingUUID)
	assert.Equal(t, "We have slots on Tuesday at 9:30 AM and 10:00 AM.", decoded.Text)
}

func TestDecodeAdjacentMarkersDoNotMerge(t *testing.T) {
	text := `BOOKING_DATA: {"booking_uuid":"inv-1"} BOOKING_DATA: {"booking_uuid":"inv-2"}`
	decoded := DecodeMarkers(text)

	require.NotNil(t, decoded.Booking)
	assert.Equal(t, "inv-1", decoded.Booking.BookingUUID)
	assert.Empty(t, decoded.Text)
}
