// Package misc keeps build time information about the program.
package misc

// Set with -ldflags "-X bibr/misc.version=... -X bibr/misc.gitHash=..."
var (
	version = "dev"
	gitHash = "unknown"
)

const appName = "bibr"

func GetVersion() string {
	return version
}

func GetGitHash() string {
	return gitHash
}

func GetAppName() string {
	return appName
}
