package inference

import (
	"encoding/base64"
	"strings"
)

// DataURI embeds data as a base64 data URI of the given MIME type.
func DataURI(mimeType string, data []byte) string {
	mimeType = strings.TrimSpace(mimeType)
	if mimeType == "" {
		mimeType = DefaultMIMEType
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
