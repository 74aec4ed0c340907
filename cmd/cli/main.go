// journalhealth - Journal Log Health Scoring
//
// journalhealth parses exported systemd journal text, classifies each message,
// and reports per-category metrics and a daily health score.
package main

import (
	"os"

	"github.com/ccollicutt/journalhealth/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
