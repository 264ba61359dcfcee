package version

import "regexp"

// version start with v is optional and followed by 3 numbers with digits between them.	e.g v2.2.1
const validRelease string = `^(v*)(0|[1-9]+[0-9]*)\.(0|[1-9]+[0-9]*)\.(0|[1-9]+[0-9]*)$`

var (
	UnreleasedVersion = "dev"
	// Version is the current git version of the code.  It is filled in by "make build".
	// Make sure to change that target in Makefile if you change its name or package.
	Version = "dev"

	validReleaseRe = regexp.MustCompile(validRelease)
)

// IsRelease reports whether v looks like a tagged release.
func IsRelease(v string) bool {
	return validReleaseRe.MatchString(v)
}

// UserAgent is sent upstream by the proxy on every forwarded request.
func UserAgent() string {
	return "blih-web-" + Version
}
