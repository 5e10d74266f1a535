// mromcore is the c-shared build target for the plugin ABI:
//
//	go build -buildmode=c-shared -o gb_dmg.mrom ./cmd/mromcore
//
// The host runtime dlopens the result and resolves mrom_ecore_init.
package main

import (
	_ "github.com/EvezArt/metarom-go/pkg/ecoreabi"
)

func main() {}
