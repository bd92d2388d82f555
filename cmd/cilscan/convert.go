package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"cilscan/internal/loader"
)

func convertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "convert in out",
		Short: "Convert a module dump between JSON and CBOR",
		Long: `Convert a module dump between JSON and CBOR.
The formats are chosen by file extension (.json, .cbor).`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, out := args[0], args[1]
			inFmt, err := loader.FormatOf(in)
			if err != nil {
				return err
			}
			outFmt, err := loader.FormatOf(out)
			if err != nil {
				return err
			}

			data, err := os.ReadFile(in)
			if err != nil {
				return fmt.Errorf("read %s: %w", in, err)
			}
			d, err := loader.Unmarshal(data, inFmt)
			if err != nil {
				return fmt.Errorf("%s: %w", in, err)
			}
			// Build validates the dump before it is written out.
			if _, err := loader.Build(d); err != nil {
				return fmt.Errorf("%s: %w", in, err)
			}
			enc, err := loader.Marshal(d, outFmt)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, enc, 0644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Fprintf(os.Stderr, "wrote %s (%d bytes)\n", out, len(enc))
			return nil
		},
	}
}
