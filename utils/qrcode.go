package utils

import (
	"net/url"
	"strings"

	"github.com/skip2/go-qrcode"
)

// GenerateQRCode 生成二维码
func GenerateQRCode(text string) ([]byte, error) {
	return qrcode.Encode(text, qrcode.Medium, 256)
}

// DashboardURL is the public page a dashboard QR code points at.
func DashboardURL(publicURL, userID string) string {
	return strings.TrimRight(publicURL, "/") + "/dashboard/" + url.PathEscape(userID)
}
