package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/ppiankov/askforge/internal/cli"
	"github.com/ppiankov/askforge/internal/relay"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var noAnswer *cli.NoAnswerError
		if errors.As(err, &noAnswer) {
			os.Exit(2)
		}
		var spawn *relay.SpawnError
		if errors.As(err, &spawn) {
			os.Exit(127)
		}
		os.Exit(1)
	}
}
