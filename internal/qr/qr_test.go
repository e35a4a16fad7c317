package qr

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestZXingRoundTrip(t *testing.T) {
	matrix, err := qrcode.NewQRCodeWriter().Encode("https://example.com/pay?id=42", gozxing.BarcodeFormat_QR_CODE, 240, 240, nil)
	require.NoError(t, err)

	text, ok := NewZXing(nil).Decode(encodePNG(t, matrix))
	require.True(t, ok)
	assert.Equal(t, "https://example.com/pay?id=42", text)
}

func TestZXingUndecodable(t *testing.T) {
	d := NewZXing(nil)

	_, ok := d.Decode([]byte("not an image"))
	assert.False(t, ok)

	_, ok = d.Decode(nil)
	assert.False(t, ok)

	blank := image.NewGray(image.Rect(0, 0, 64, 64))
	for i := range blank.Pix {
		blank.Pix[i] = uint8(color.White.Y >> 8)
	}
	_, ok = d.Decode(encodePNG(t, blank))
	assert.False(t, ok)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		in   string
		want ContentType
	}{
		{"https://example.com", TypeURL},
		{"HTTP://EXAMPLE.COM", TypeURL},
		{"www.example.com/login", TypeURL},
		{"mailto:help@example.com", TypeEmail},
		{"tel:+14155550100", TypePhone},
		{"+14155550100", TypePhone},
		{"SMSTO:+14155550100:hi", TypeSMS},
		{"geo:37.77,-122.41", TypeLocation},
		{"WIFI:S:home;T:WPA;P:secret;;", TypeWiFi},
		{"BEGIN:VCARD\nVERSION:3.0\nFN:Jo\nEND:VCARD", TypeContactCard},
		{"jo@example.com", TypeEmailAddress},
		{"not-a-url plain text", TypeText},
		{"mail me at jo@example.com today", TypeText},
		{"12345", TypeText},
		{"", TypeText},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.in))
		})
	}
	assert.True(t, TypeURL.IsURL())
	assert.False(t, TypeText.IsURL())
}
