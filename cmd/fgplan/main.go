// Command fgplan compiles frame graph descriptions and traces them on a
// recording device.
package main

import "github.com/gogpu/framegraph/cmd/fgplan/internal/command"

func main() {
	command.Execute()
}
