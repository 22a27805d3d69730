// tradepilot runs autonomous sentiment-driven trading agents.
package main

func main() {
	Execute()
}
