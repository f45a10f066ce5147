package commands

import (
	"fmt"
	"os"

	"github.com/spf13/afero"
)

// Pwd prints the working directory.
func Pwd(s *Shell, args []string) int {
	cmd := &SimpleCommand{
		Use:   "pwd",
		Short: "Print the name of the current working directory.",
	}

	return cmd.Run(s, args, func() int {
		pwd, err := os.Getwd()
		if err != nil {
			fmt.Fprintf(s.Stderr(), "pwd: %v\n", err)
			return 1
		}
		fmt.Fprintln(s.Stdout(), pwd)
		return 0
	})
}

// Cd is the cd shell builtin
func Cd(s *Shell, args []string) int {
	cmd := &SimpleCommand{
		Use:   "cd [dir]",
		Short: "Change the shell working directory, $HOME by default.",
	}

	opts := cmd.Flags()
	return cmd.Run(s, args, func() int {
		var dir string
		switch len(opts.Args()) {
		case 0:
			dir = os.Getenv(EnvHome)
		case 1:
			dir = opts.Arg(0)
		default:
			fmt.Fprintln(s.Stderr(), "cd: too many arguments")
			return 1
		}

		if err := os.Chdir(dir); err != nil {
			fmt.Fprintf(s.Stderr(), "Can't find %q directory\n", dir)
			return 1
		}
		if wd, err := os.Getwd(); err == nil {
			os.Setenv(EnvPWD, wd)
		}
		return 0
	})
}

// Dir lists the entries of a directory, the working directory by default.
func Dir(s *Shell, args []string) int {
	cmd := &SimpleCommand{
		Use:   "dir [dir]",
		Short: "List the files in a directory.",
	}

	opts := cmd.Flags()
	return cmd.Run(s, args, func() int {
		dir := "."
		if opts.NArgs() > 0 {
			dir = opts.Arg(0)
		}

		entries, err := afero.ReadDir(s.Fs, dir)
		if err != nil {
			fmt.Fprintf(s.Stderr(), "Can't find %q directory\n", dir)
			return 1
		}

		for _, entry := range entries {
			fmt.Fprintln(s.Stdout(), entry.Name())
		}
		return 0
	})
}

func init() {
	addResidentBuiltin("cd", Cd)
	addBuiltin("pwd", Pwd)
	addBuiltin("dir", Dir)
}
