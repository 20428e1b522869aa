// Command eegrec records EEG sessions from an OpenBCI or synthetic board.
package main

import (
	"fmt"
	"os"

	"github.com/Iron-Ham/eegrec/internal/cmd"
	"github.com/Iron-Ham/eegrec/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", errors.UserMessage(err))
		os.Exit(errors.ExitCode(err))
	}
}
