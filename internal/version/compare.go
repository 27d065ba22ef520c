package version

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/rxtech-lab/argo-bot/pkg/errors"
)

// Parse validates a semantic version, accepting an optional "v" prefix.
func Parse(v string) (*semver.Version, error) {
	parsed, err := semver.NewVersion(strings.TrimPrefix(v, "v"))
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeInvalidVersion, err, "invalid version %q", v)
	}

	return parsed, nil
}

// CheckVersionCompatibility checks that a document written for required can run on host.
//
//   - "main" on either side skips the check (development builds)
//   - an empty required version is always compatible
//   - major and minor must match, patch may differ
func CheckVersionCompatibility(host, required string) error {
	host = strings.TrimPrefix(host, "v")
	required = strings.TrimPrefix(required, "v")

	if host == "main" || required == "main" || required == "" {
		return nil
	}

	hostVersion, err := Parse(host)
	if err != nil {
		return err
	}

	requiredVersion, err := Parse(required)
	if err != nil {
		return err
	}

	if hostVersion.Major() != requiredVersion.Major() || hostVersion.Minor() != requiredVersion.Minor() {
		return errors.New(errors.ErrCodeVersionMismatch,
			fmt.Sprintf("version mismatch: host is %d.%d.x but document requires %d.%d.x",
				hostVersion.Major(), hostVersion.Minor(), requiredVersion.Major(), requiredVersion.Minor()))
	}

	return nil
}
