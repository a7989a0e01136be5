package utils

import (
	"strings"

	"github.com/hashicorp/go-version"

	"xandpulse/models"
)

// VersionConfig holds current version requirements
type VersionConfig struct {
	CurrentStable string
	MinSupported  string
	Deprecated    string
}

var DefaultVersionConfig = VersionConfig{
	CurrentStable: "0.8.0",
	MinSupported:  "0.7.3",
	Deprecated:    "0.7.2",
}

// CheckVersionStatus determines if a node version needs upgrading
func CheckVersionStatus(nodeVersion string, config *VersionConfig) (status string, needsUpgrade bool, severity string) {
	if config == nil {
		config = &DefaultVersionConfig
	}

	nodeVer, err := version.NewVersion(strings.TrimPrefix(nodeVersion, "v"))
	if err != nil {
		return "unknown", false, "info"
	}
	// Pre-release tracks compare on their core version.
	nodeVer = nodeVer.Core()

	current, _ := version.NewVersion(config.CurrentStable)
	minSupported, _ := version.NewVersion(config.MinSupported)
	deprecated, _ := version.NewVersion(config.Deprecated)

	if nodeVer.LessThan(deprecated) {
		return "deprecated", true, "critical"
	}
	if nodeVer.LessThan(minSupported) {
		return "outdated", true, "warning"
	}
	if nodeVer.LessThan(current) {
		return "outdated", true, "info"
	}
	return "current", false, "none"
}

// ClassifyVersionType maps a version string to its release track.
// "0.8.0" is mainnet, "0.8.0-trynet.20251210" is trynet.
func ClassifyVersionType(nodeVersion string) models.VersionType {
	raw := strings.ToLower(strings.TrimSpace(nodeVersion))
	if raw == "" {
		return models.VersionUnknown
	}

	v, err := version.NewVersion(strings.TrimPrefix(raw, "v"))
	if err != nil {
		// Some builds report "devnet-0.7.x" style strings.
		switch {
		case strings.Contains(raw, "trynet"):
			return models.VersionTrynet
		case strings.Contains(raw, "devnet"):
			return models.VersionDevnet
		}
		return models.VersionUnknown
	}

	pre := v.Prerelease()
	switch {
	case pre == "":
		return models.VersionMainnet
	case strings.Contains(pre, "trynet"):
		return models.VersionTrynet
	case strings.Contains(pre, "devnet"):
		return models.VersionDevnet
	}
	return models.VersionUnknown
}
