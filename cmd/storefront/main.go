// Package main is the entry point for the storefront shell: an interactive
// terminal storefront, a headless status server, and a one-shot bootstrap.
package main

func main() {
	Execute()
}
