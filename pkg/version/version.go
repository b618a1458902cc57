package version

// Version is the current ordframe release.
const Version = "1.0.0"

// BuildVersion returns the version string shown by `ordframe version`.
func BuildVersion() string {
	return "ordframe version " + Version
}

// APIVersion returns just the version number for API responses
func APIVersion() string {
	return Version
}

// UserAgent is sent with every upstream HTTP request.
func UserAgent() string {
	return "ordframe/" + Version
}
