package main

import (
	"io"

	"github.com/spf13/cobra"
)

func newRootCommand(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut}

	root := &cobra.Command{
		Use:                "gepctl",
		Short:              "Schedule-based group encryption administration",
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
	}
	root.SetOut(out)
	root.SetErr(errOut)
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to the YAML configuration file")
	root.PersistentFlags().StringVar(&a.keyPath, "key", "gepctl.key", "PKCS#8 signing key, created when missing")
	root.PersistentFlags().StringVar(&a.identity, "identity", "", "signing identity (defaults to <prefix>/manager or <prefix>/producer)")

	root.AddCommand(
		a.scheduleCommand(),
		a.memberCommand(),
		a.intervalCommand(),
		a.groupKeyCommand(),
		a.produceCommand(),
	)
	return root
}
