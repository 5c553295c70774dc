package main

import "github.com/careops/mongo-migration-engine/internal/cli"

func main() {
	cli.Execute()
}
