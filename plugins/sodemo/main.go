// Command sodemo is the memory plugin built as a Go shared object.
//
//	go build -buildmode=plugin -o memory.so ./plugins/sodemo
//
// The object must be built with the same toolchain and module versions as the host.
package main

import (
	"github.com/reglet-dev/robohost/export"
	"github.com/reglet-dev/robohost/plugins/memory"
)

// RobotPluginModule is looked up by the host loader.
var RobotPluginModule = memory.Module()

var _ *export.Module = RobotPluginModule

func main() {}
