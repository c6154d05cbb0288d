// Package banner renders the startup banner for the CLI.
package banner

import "fmt"

const logo = `     _     _ _ _ _
  __| | __| | (_) |_ ___
 / _` + "`" + ` |/ _` + "`" + ` | | | __/ _ \
| (_| | (_| | | | ||  __/
 \__,_|\__,_|_|_|\__\___|
`

// Banner returns the logo with the version appended.
func Banner(version string) string {
	return fmt.Sprintf("%s version %s\n", logo, version)
}
