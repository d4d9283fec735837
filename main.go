// The main package for the wikicrawler executable.
package main

import (
	"github.com/JakeFAU/wikicrawler/cmd"
)

func main() {
	cmd.Execute()
}
