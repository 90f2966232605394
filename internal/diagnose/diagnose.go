// Package diagnose renders structured diagnostics bundles and startup
// failures into human-readable remediation text, for surfacing through
// the CLI/IPC and HTTP control surfaces.
package diagnose

import (
	"fmt"
	"strings"

	"github.com/clarad/clarad/internal/model"
)

// BinaryValidation renders a model.Diagnostics bundle (produced by the
// Binary Provisioner on validation failure) into remediation text.
func BinaryValidation(d *model.Diagnostics) string {
	if d == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Binary validation failed.\n\n")
	sb.WriteString(fmt.Sprintf("%s\n\n", d.Message))
	sb.WriteString(fmt.Sprintf("Base directory: %s\n", d.BaseDir))
	sb.WriteString(fmt.Sprintf("Platform directory: %s\n", d.PlatformDir))

	if len(d.AttemptedPaths) > 0 {
		sb.WriteString("\nAttempted paths:\n")
		for _, p := range d.AttemptedPaths {
			if p == "" {
				continue
			}
			sb.WriteString(fmt.Sprintf("  - %s\n", p))
		}
	}
	if len(d.BaseListing) > 0 {
		sb.WriteString(fmt.Sprintf("\nBase directory contents: %s\n", strings.Join(d.BaseListing, ", ")))
	}
	if len(d.PlatformListing) > 0 {
		sb.WriteString(fmt.Sprintf("Platform directory contents: %s\n", strings.Join(d.PlatformListing, ", ")))
	}

	sb.WriteString("\nRecommendation: re-run binary provisioning, or manually place the swap " +
		"front-end and inference server binaries in the directories listed above.\n")
	return sb.String()
}

// startupRemediation maps a classified startup failure (§4.H/§7) to a
// one-line human-readable hint. Unknown/other failures get a generic hint.
var startupRemediation = map[string]string{
	"flash_attn_required": "The selected cache type requires flash attention, which was not " +
		"enabled. clarad already retried once with flash attention forced; if this message is " +
		"seen again the GPU driver or backend may not support flash attention.",
	"port_in_use": "The proxy's listen port was already bound by another process. clarad " +
		"already attempted to free it once and retry; if this recurs, another application may " +
		"be repeatedly claiming the port.",
}

// StartupFailure renders a remediation hint for a startup failure whose
// stderr has already been classified (see proxy.classifyStartupFailure).
// kind is one of "flash_attn_required", "port_in_use", or "" for anything
// else, in which case a generic hint referencing raw stderr is produced.
func StartupFailure(kind string, rawErr string) string {
	if hint, ok := startupRemediation[kind]; ok {
		return hint
	}
	if rawErr == "" {
		return "The inference server failed to start for an unknown reason."
	}
	return fmt.Sprintf("The inference server failed to start: %s", firstLine(rawErr))
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
