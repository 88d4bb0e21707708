package main

import (
	"clubfin/internal/cli"
	"clubfin/internal/ctl"
)

func main() {
	cli.LoadEnvFile()
	ctl.Execute()
}
