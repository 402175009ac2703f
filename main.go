// Package main is the entry point of the ads.txt / app-ads.txt checker.
package main

import "github.com/FCTostin/ads.txt-app-ads.txt-Checker/cmd"

func main() {
	cmd.Execute()
}
