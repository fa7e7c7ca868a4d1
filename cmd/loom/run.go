package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	lua "github.com/yuin/gopher-lua"

	"github.com/wippyai/loom-runtime/errors"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	var (
		abs   bool
		ticks int
		call  string
	)

	cmd := &cobra.Command{
		Use:   "run <executable> [args...]",
		Short: "Load an executable and run its entry point",
		Long: `Load an executable from the binary directory and bootstrap it.

The executable name and the remaining arguments form the command line
scripts read through VM.getCommandLine. With --call, the named static
method (pkg.Type.method) is also invoked after loading with the remaining
arguments. Numbers, true, false and nil are passed as script values,
everything else as strings.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			logger, err := cfg.Log.NewLogger()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			s, err := openSession(ctx, cfg, logger, os.Exit)
			if err != nil {
				return err
			}
			defer s.close(ctx)

			s.state.SetCommandLine(args)
			if _, err := s.state.LoadExecutable(args[0], abs); err != nil {
				return err
			}

			if call != "" {
				typeName, method, err := splitMethod(call)
				if err != nil {
					return err
				}
				callArgs := make([]lua.LValue, 0, len(args)-1)
				for _, a := range args[1:] {
					callArgs = append(callArgs, convertArg(a))
				}
				results, err := s.state.InvokeStaticMethod(ctx, typeName, method, callArgs...)
				if err != nil {
					return err
				}
				if len(results) > 0 {
					fmt.Fprintln(cmd.OutOrStdout(), formatResults(results))
				}
			}

			for i := 0; i < ticks; i++ {
				if err := s.state.Tick(ctx); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&abs, "abs", false, "treat the executable name as a path instead of a bin_dir entry")
	cmd.Flags().IntVar(&ticks, "ticks", 0, "number of VM ticks to run after loading")
	cmd.Flags().StringVar(&call, "call", "", "static method to invoke after loading (pkg.Type.method)")
	return cmd
}

// splitMethod splits "pkg.Type.method" at the last dot.
func splitMethod(name string) (typeName, method string, err error) {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 || i == len(name)-1 {
		return "", "", errors.InvalidInput(errors.PhaseRuntime,
			fmt.Sprintf("method %q is not of the form pkg.Type.method", name))
	}
	return name[:i], name[i+1:], nil
}
