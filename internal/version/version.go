package version

// Version is the current version of argo-bot.
// This value is set at build time using ldflags:
// -ldflags "-X github.com/rxtech-lab/argo-bot/internal/version.Version=1.2.3"
// The default value "main" indicates a development build.
var Version = "main"

// RuleAPIVersion is the version of the rule document format understood by this build.
// Rule documents declaring an engine version must match its major and minor parts.
const RuleAPIVersion = "1.0.0"

// GetVersion returns the current version of the bot.
func GetVersion() string {
	return Version
}
