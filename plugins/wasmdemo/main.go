//go:build wasip1

// Command wasmdemo is the memory plugin compiled as a wasm guest.
//
//	GOOS=wasip1 GOARCH=wasm go build -buildmode=c-shared -o memory.wasm ./plugins/wasmdemo
//	go run ./cmd/rrp-stamp memory.wasm
//
// The stamped module loads with plugin.Loader.Load(ctx, "memory.wasm").
package main

import (
	"github.com/reglet-dev/robohost/export"
	"github.com/reglet-dev/robohost/plugins/memory"
)

func init() {
	export.Serve(memory.Module())
}

func main() {}
