package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/goodtune/focuswatch/internal/config"
)

var (
	validateDump bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long:  `Validate the FocusWatch configuration file for syntax and semantic errors.`,
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateDump, "dump", false, "Dump the effective configuration as YAML, highlighting non-default values")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration validation failed: %v\n", err)
		return err
	}

	// Check for unknown keys (always, not just with -dump)
	unknownKeys, err := findUnknownKeys(configPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "⚠️  Warning: Could not check for unknown keys: %v\n", err)
	}

	_, _ = fmt.Fprintf(os.Stdout, "✅ Configuration is valid: %s\n", configPath)

	if len(unknownKeys) > 0 {
		red := color.New(color.FgRed, color.Bold)
		fmt.Fprintln(os.Stdout)
		red.Fprintf(os.Stdout, "⚠️  WARNING: Found %d unknown configuration key(s):\n", len(unknownKeys))
		for _, key := range unknownKeys {
			red.Fprintf(os.Stdout, "   - %s\n", key)
		}
		fmt.Fprintln(os.Stdout, "\nThese keys will be ignored and may indicate typos or deprecated settings.")
	}

	if validateDump {
		_, _ = fmt.Fprintln(os.Stdout, "\n"+strings.Repeat("=", 80))
		_, _ = fmt.Fprintln(os.Stdout, "FULL CONFIGURATION (values different from defaults are highlighted)")
		_, _ = fmt.Fprintln(os.Stdout, strings.Repeat("=", 80))
		return dumpConfig(cfg, config.Defaults())
	}

	return nil
}

// findUnknownKeys loads the config file and checks for unknown keys
func findUnknownKeys(configPath string) ([]string, error) {
	v := viper.New()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	valid := config.KnownKeys()
	unknown := []string{}
	for _, key := range v.AllKeys() {
		if !valid[key] {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	return unknown, nil
}

// dumpConfig prints cfg as YAML, coloring leaf values that differ from def.
func dumpConfig(cfg, def *config.Config) error {
	var current, defaults yaml.Node
	if err := current.Encode(cfg); err != nil {
		return fmt.Errorf("encode configuration: %w", err)
	}
	if err := defaults.Encode(def); err != nil {
		return fmt.Errorf("encode defaults: %w", err)
	}

	changed := make(map[string]bool)
	diffNodes("", &current, &defaults, changed)

	out, err := yaml.Marshal(&current)
	if err != nil {
		return fmt.Errorf("render configuration: %w", err)
	}

	highlight := color.New(color.FgYellow, color.Bold)
	var path []string
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		trimmed := strings.TrimLeft(line, " ")
		depth := (len(line) - len(trimmed)) / 4
		key, _, hasKey := strings.Cut(trimmed, ":")
		if hasKey && !strings.HasPrefix(trimmed, "- ") {
			if depth < len(path) {
				path = path[:depth]
			}
			path = append(path, key)
		}
		if changed[strings.Join(path, ".")] {
			highlight.Fprintln(os.Stdout, line)
			continue
		}
		fmt.Fprintln(os.Stdout, line)
	}
	return nil
}

// diffNodes records dotted paths of scalar or sequence values in a that
// differ from b.
func diffNodes(prefix string, a, b *yaml.Node, changed map[string]bool) {
	if a.Kind == yaml.DocumentNode && len(a.Content) > 0 {
		var bc *yaml.Node
		if b != nil && len(b.Content) > 0 {
			bc = b.Content[0]
		}
		diffNodes(prefix, a.Content[0], bc, changed)
		return
	}

	if a.Kind != yaml.MappingNode {
		if b == nil || !sameNode(a, b) {
			changed[prefix] = true
		}
		return
	}

	for i := 0; i+1 < len(a.Content); i += 2 {
		key := a.Content[i].Value
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		diffNodes(path, a.Content[i+1], lookup(b, key), changed)
	}
}

func lookup(n *yaml.Node, key string) *yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

func sameNode(a, b *yaml.Node) bool {
	if a.Kind != b.Kind || a.Value != b.Value || len(a.Content) != len(b.Content) {
		return false
	}
	for i := range a.Content {
		if !sameNode(a.Content[i], b.Content[i]) {
			return false
		}
	}
	return true
}
