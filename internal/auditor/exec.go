package auditor

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/perfkit/lighthouse-compare/internal/config"
)

// ExecRunner invokes the Lighthouse CLI through node on the host.
type ExecRunner struct {
	nodeBin       string
	lighthouseBin string
	chromeFlags   []string
}

func NewExecRunner(cfg config.Auditor) *ExecRunner {
	return &ExecRunner{
		nodeBin:       cfg.NodeBin,
		lighthouseBin: cfg.LighthouseBin,
		chromeFlags:   cfg.ChromeFlags,
	}
}

func (r *ExecRunner) Run(ctx context.Context, url, outPath string) error {
	args := []string{
		r.lighthouseBin,
		url,
		"--output=json",
		"--output-path", outPath,
		"--quiet",
		"--chrome-flags=" + strings.Join(r.chromeFlags, " "),
	}

	cmd := exec.CommandContext(ctx, r.nodeBin, args...)

	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("lighthouse timed out for %s", url)
		}
		return fmt.Errorf("lighthouse failed for %s: %s", url, tail(stderr.String()))
	}
	return nil
}

// tail keeps error payloads readable; lighthouse stderr can run to pages.
func tail(s string) string {
	s = strings.TrimSpace(s)
	lines := strings.Split(s, "\n")
	if len(lines) > 5 {
		lines = lines[len(lines)-5:]
	}
	return strings.Join(lines, "\n")
}
