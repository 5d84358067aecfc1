// Reaper - Automated Idle Instance Shutdown
// Opt in with a tag, go idle past the limit, get stopped and told about it.
package main

func main() {
	Execute()
}
