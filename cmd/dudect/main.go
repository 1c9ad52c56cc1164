// Command dudect runs timing-leakage sessions on the built-in targets.
//
// Exit status is 0 when every target passed, 1 when any target leaked or
// stayed inconclusive, and 2 on errors.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const (
	exitPass  = 0
	exitLeak  = 1
	exitError = 2
)

// exitCodeError carries a non-error exit status out of a command.
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

type globalFlags struct {
	verbose bool
	logJSON bool
}

func newLogger(out io.Writer, g *globalFlags) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)
	if g.logJSON {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339Nano,
			FullTimestamp:   true,
		})
	}
	logger.SetLevel(logrus.WarnLevel)
	if g.verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:           "dudect",
		Short:         "Detects timing leaks with Welch's t-test",
		Long:          "Runs the built-in targets many times on two input classes and compares their execution times.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "log every batch at debug level")
	rootCmd.PersistentFlags().BoolVar(&g.logJSON, "log-json", false, "log as JSON")

	rootCmd.AddCommand(
		newListCmd(),
		newRunCmd(g),
		newHistoryCmd(),
		newConfigCmd(),
	)
	return rootCmd
}

func execute(args []string, stdout, stderr io.Writer) int {
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.Execute()
	var ec *exitCodeError
	switch {
	case err == nil:
		return exitPass
	case errors.As(err, &ec):
		return ec.code
	default:
		fmt.Fprintln(stderr, "Error:", err)
		return exitError
	}
}

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}
