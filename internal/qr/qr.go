// Package qr decodes QR code images and classifies their payloads.
package qr

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"regexp"
	"strings"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// Decoder extracts the text payload of a QR code image. ok is false when the
// image is unreadable or holds no QR code.
type Decoder interface {
	Decode(img []byte) (text string, ok bool)
}

// ZXing decodes PNG, JPEG and GIF images with the ZXing QR reader.
type ZXing struct {
	logger *slog.Logger
}

// NewZXing returns a decoder. logger may be nil.
func NewZXing(logger *slog.Logger) *ZXing {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ZXing{logger: logger}
}

func (z *ZXing) Decode(data []byte) (string, bool) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		z.logger.Debug("qr image not decodable", "err", err)
		return "", false
	}
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		z.logger.Debug("qr bitmap conversion failed", "format", format, "err", err)
		return "", false
	}
	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	res, err := qrcode.NewQRCodeReader().Decode(bmp, hints)
	if err != nil {
		z.logger.Debug("no qr code found", "format", format, "err", err)
		return "", false
	}
	text := strings.TrimSpace(res.GetText())
	return text, text != ""
}

// ContentType is the kind of payload a QR code carries.
type ContentType string

const (
	TypeURL          ContentType = "URL"
	TypeEmail        ContentType = "Email"
	TypePhone        ContentType = "Phone Number"
	TypeSMS          ContentType = "SMS"
	TypeLocation     ContentType = "Location"
	TypeWiFi         ContentType = "WiFi"
	TypeEmailAddress ContentType = "Email Address"
	TypeContactCard  ContentType = "Contact Card"
	TypeText         ContentType = "Text"
)

var barePhone = regexp.MustCompile(`^\+?\d{10,}$`)

// Classify detects the payload type from its prefix or shape. Checks run in a
// fixed order; the first match wins.
func Classify(text string) ContentType {
	t := strings.TrimSpace(text)
	lower := strings.ToLower(t)
	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"), strings.HasPrefix(lower, "www."):
		return TypeURL
	case strings.HasPrefix(lower, "mailto:"):
		return TypeEmail
	case strings.HasPrefix(lower, "tel:"):
		return TypePhone
	case strings.HasPrefix(lower, "sms:"), strings.HasPrefix(lower, "smsto:"):
		return TypeSMS
	case strings.HasPrefix(lower, "geo:"):
		return TypeLocation
	case strings.HasPrefix(lower, "wifi:"):
		return TypeWiFi
	case strings.HasPrefix(lower, "begin:vcard"):
		return TypeContactCard
	case !strings.ContainsAny(t, " \t\n") && strings.Contains(t, "@") && strings.Contains(t, "."):
		return TypeEmailAddress
	case barePhone.MatchString(t):
		return TypePhone
	}
	return TypeText
}

// IsURL reports whether the payload should be scored as a URL.
func (c ContentType) IsURL() bool { return c == TypeURL }
