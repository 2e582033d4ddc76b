package auth

// BundledOAuthClientID and BundledOAuthClientSecret are injected at build
// time through -ldflags. When left empty, users must supply their own OAuth
// client via flags or environment variables.
var (
	BundledOAuthClientID     string
	BundledOAuthClientSecret string
)

// GetBundledOAuthClient reports the build-time OAuth client, if any.
func GetBundledOAuthClient() (clientID, clientSecret string, ok bool) {
	if BundledOAuthClientID == "" {
		return "", "", false
	}
	return BundledOAuthClientID, BundledOAuthClientSecret, true
}
