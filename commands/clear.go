package commands

import (
	"fmt"
)

// Clr clears the screen, assuming VT100 compatibility.
func Clr(s *Shell, args []string) int {
	cmd := &SimpleCommand{
		Use:   "clr",
		Short: "Clear the terminal screen.",
	}

	return cmd.Run(s, args, func() int {
		fmt.Fprint(s.Stdout(), "\033[H\033[J")
		return 0
	})
}

func init() {
	addBuiltin("clr", Clr)
}
