package main

import (
	"fmt"
	"strings"

	"github.com/paveg/kwdata"
	"github.com/paveg/kwdata/internal/settings"
	"github.com/paveg/kwdata/internal/version"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type rootOptions struct {
	manifests  []string
	configFile string
	sets       []string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "kwdata-cli",
		Short: "Resolve the data of test keywords",
		Long: `kwdata-cli loads keyword signatures from manifests and resolves the
data a keyword call would run on: bound arguments, data files, row
selections and evaluated expressions.`,
		Version: version.Version,
		// Errors are reported by us, usage is only printed for flag errors.
		SilenceUsage: true,
	}
	cmd.SetVersionTemplate(`{{printf "kwdata-cli version %s\n" .Version}}`)

	flags := cmd.PersistentFlags()
	flags.StringSliceVarP(&opts.manifests, "manifest", "m", nil, "keyword manifest file or directory (repeatable)")
	flags.StringVarP(&opts.configFile, "config", "c", "", "settings file (YAML or JSON)")
	flags.StringArrayVar(&opts.sets, "set", nil, "setting override KEY=VALUE (repeatable)")

	cmd.AddCommand(newResolveCmd(opts))
	cmd.AddCommand(newKeywordsCmd(opts))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// framework builds a framework from the environment, the config file, the
// --set overrides and the manifest locations, in that order of precedence.
func (o *rootOptions) framework(cmd *cobra.Command) (*kwdata.Framework, error) {
	overrides, err := parseAssignments(o.sets)
	if err != nil {
		return nil, err
	}
	if o.configFile != "" {
		overrides[settings.KeyConfigFile] = o.configFile
	}

	s, err := settings.Apply(settings.LoadFromEnv(), overrides)
	if err != nil {
		return nil, err
	}
	if len(o.manifests) > 0 {
		s.Locations = append(s.Locations, o.manifests...)
	}

	return kwdata.New(kwdata.WithSettings(s), kwdata.WithLogOutput(cmd.ErrOrStderr()))
}

// parseAssignments splits KEY=VALUE pairs, decoding each value as a YAML
// scalar or list. Values that decode to a mapping, such as "ev: X > 3", are
// kept as written.
func parseAssignments(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid assignment %q, expected KEY=VALUE", pair)
		}
		out[strings.TrimSpace(key)] = decodeValue(raw)
	}
	return out, nil
}

func decodeValue(raw string) any {
	if raw == "" {
		return ""
	}
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	switch v.(type) {
	case nil, map[string]any, map[any]any:
		return raw
	default:
		return v
	}
}
