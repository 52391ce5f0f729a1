package main

import "github.com/KaramelBytes/cosinor-cli/cmd"

func main() {
	cmd.Execute()
}
