package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newKeywordsCmd(root *rootOptions) *cobra.Command {
	var robot, docs bool

	cmd := &cobra.Command{
		Use:   "keywords",
		Short: "List the keywords declared in the manifests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := root.framework(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, name := range f.KeywordNames() {
				args, err := f.KeywordArguments(name, robot)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s(%s)\n", name, strings.Join(args, ", "))

				if !docs {
					continue
				}
				doc, err := f.KeywordDocumentation(name)
				if err != nil {
					return err
				}
				for _, line := range strings.Split(doc, "\n") {
					if line != "" {
						fmt.Fprintf(out, "    %s\n", line)
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&robot, "robot", false, "render parameters as NAME=() and NAME=default")
	cmd.Flags().BoolVar(&docs, "docs", false, "print keyword documentation")
	return cmd
}
