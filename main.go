// main.go
package main

import "wakey-bot/cmd"

func main() {
	cmd.Execute()
}
