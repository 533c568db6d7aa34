package main

import (
	"fmt"
	"os"

	"github.com/bmeg/kgload/cmd"
	"github.com/bmeg/kgload/log"
)

func main() {
	log.ConfigureLogger(log.DefaultLoggerConfig())
	if err := cmd.RootCmd.Execute(); err != nil {
		fmt.Println("Error:", err.Error())
		os.Exit(1)
	}
}
