package domain

// ReferenceAsset is an image or media payload supplied to a provider to bias
// generation toward a known subject's appearance. Exactly one of Data or URI
// is populated.
type ReferenceAsset struct {
	Data     []byte
	URI      string
	MIMEType string
	Role     string
}
