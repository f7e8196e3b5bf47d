package main

import "riskwatch/internal/cli"

func main() {
	cli.Execute()
}
