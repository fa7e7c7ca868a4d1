package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/wippyai/loom-runtime/assembly"
	"github.com/wippyai/loom-runtime/container"
)

func newPackCmd(opts *rootOptions) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "pack <assembly.json>",
		Short: "Pack a textual assembly into an executable",
		Long: `Pack a JSON assembly document into a compressed executable.

The output defaults to <bin_dir>/<name><extension>. Assemblies without a
uid get a random one.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			text, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read assembly: %w", err)
			}

			doc, buf, err := packAssembly(text)
			if err != nil {
				return err
			}

			path := out
			if path == "" {
				path = cfg.ExecutablePath(doc.Name, false)
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}
			if err := os.WriteFile(path, buf, 0o644); err != nil {
				return fmt.Errorf("write executable: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "packed %s (%s) -> %s, %d bytes\n", doc.Name, doc.UID, path, len(buf))
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "output", "o", "", "output path")
	return cmd
}

// packAssembly checks a textual assembly and returns its executable form.
func packAssembly(text []byte) (*assembly.Document, []byte, error) {
	doc, err := assembly.ParseText(text)
	if err != nil {
		return nil, nil, err
	}
	if doc.UID == "" {
		doc.UID = uuid.NewString()
	}

	// References outside the document stay unresolved here; only
	// structural faults are reported.
	if _, err := assembly.Build(doc, nil); err != nil {
		return nil, nil, err
	}

	raw, err := assembly.MarshalBinary(doc)
	if err != nil {
		return nil, nil, err
	}
	buf, err := container.Encode(raw)
	if err != nil {
		return nil, nil, err
	}
	return doc, buf, nil
}
