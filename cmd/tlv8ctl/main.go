package main

import "github.com/anirudhraja/tlv8/cmd/tlv8ctl/cmd"

func main() {
	cmd.Execute()
}
