package main

import "fmt"

// Version is set at build time via -ldflags "-X main.Version=...".
var Version = "dev"

// PrintVersion prints version information.
func PrintVersion() {
	fmt.Printf("reasoning-gateway %s\n", Version)
}
