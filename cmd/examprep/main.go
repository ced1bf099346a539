package main

import (
	"os"

	"github.com/ItshMoh/ExamPrepAgent/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
