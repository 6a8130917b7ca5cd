package main

import (
	"os"

	"github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
