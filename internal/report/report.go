// Package report assembles and serializes the top-level benchmark
// report the CLI front-end writes to disk and optionally submits to
// the catalog.
package report

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/BotBlake/tabbench/internal/engine"
	"github.com/BotBlake/tabbench/internal/hwinventory"
)

// Report is the `{token, hwinfo, tests}` shape the catalog contract
// and local output file both share.
type Report struct {
	Token  string                `json:"token"`
	HWInfo hwinventory.HostInfo  `json:"hwinfo"`
	Tests  []engine.ProbeResult  `json:"tests"`
}

// New assembles a Report from a catalog token, collected host
// inventory, and the ordered ProbeResults the engine produced.
func New(token string, hwinfo hwinventory.HostInfo, tests []engine.ProbeResult) Report {
	return Report{Token: token, HWInfo: hwinfo, Tests: tests}
}

// Marshal serializes the report as JSON, indenting when pretty is true.
func Marshal(r Report, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(r, "", "  ")
	}
	return json.Marshal(r)
}

// WriteFile serializes the report and writes it to path.
func WriteFile(path string, r Report, pretty bool) error {
	data, err := Marshal(r, pretty)
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing report to %s: %w", path, err)
	}
	return nil
}
