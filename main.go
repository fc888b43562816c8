package main

import (
	"github.com/fraudledger/migrate/cmd"
)

func main() {
	cmd.Execute()
}
