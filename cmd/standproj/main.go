// Command standproj projects forest stand polygons through the growth
// model engines.
package main

import "github.com/mesh-intelligence/standproj/internal/cli"

func main() {
	cli.Execute()
}
