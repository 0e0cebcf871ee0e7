// Package contenttype holds the fixed whitelist of image content types the
// server accepts for upload.
package contenttype

const (
	JPEG = "image/jpeg"
	PNG  = "image/png"
	JPG  = "image/jpg"
)

var accepted = []string{JPEG, PNG, JPG}

// IsAccepted reports whether contentType is one of the whitelisted image types.
// The comparison is exact; parameters such as "; charset=" are not stripped.
func IsAccepted(contentType string) bool {
	for _, ct := range accepted {
		if ct == contentType {
			return true
		}
	}
	return false
}

// Accepted returns a copy of the whitelist in declaration order.
func Accepted() []string {
	out := make([]string, len(accepted))
	copy(out, accepted)
	return out
}
