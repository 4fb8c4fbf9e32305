package main

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	applog "github.com/nao1215/autoarchiver/internal/log"
	"github.com/nao1215/autoarchiver/internal/module"
	"github.com/nao1215/autoarchiver/internal/modules"
)

// NewModulesCmd creates the modules command.
func NewModulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "modules [name]",
		Short: "List available modules or show the options of one",
		Long: `Modules lists every module found in the built-in set and in the module
paths, with its capabilities. Given a module name, it shows the options the
module accepts.

Examples:
  # List every module
  autoarchiver modules

  # Show the options of local_storage
  autoarchiver modules local_storage

  # List only storages
  autoarchiver modules --capability storage

  # Include modules from an extra directory
  autoarchiver modules --module-paths ./my-modules`,
		Args: cobra.MaximumNArgs(1),
		RunE: runModulesCmd,
	}

	cmd.Flags().StringP("config", "c", "",
		"Orchestration document whose module_paths are searched")
	cmd.Flags().StringSlice("module-paths", nil,
		"Extra directories searched for modules")
	cmd.Flags().String("capability", "",
		"Only list modules with this capability (feeder, extractor, enricher, database, storage, formatter)")

	return cmd
}

// errUnknownCapability is returned for a --capability outside the known set.
var errUnknownCapability = errors.New("unknown capability")

func runModulesCmd(cmd *cobra.Command, args []string) error {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}
	extra, err := cmd.Flags().GetStringSlice("module-paths")
	if err != nil {
		return err
	}
	capability, err := cmd.Flags().GetString("capability")
	if err != nil {
		return err
	}
	if capability != "" && !slices.Contains(module.Capabilities, module.Capability(capability)) {
		return fmt.Errorf("%w: %s", errUnknownCapability, capability)
	}

	doc, _, _, err := loadDocument(configPath)
	if err != nil {
		return err
	}
	reg := module.New(
		module.WithLogger(applog.NewSecureLogger(cmd.ErrOrStderr(), getVerboseFlag(cmd))),
		module.WithTable(modules.Table()),
	)
	if err := reg.Discover(moduleRoots(doc, extra)...); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(args) == 1 {
		h, ok := reg.Get(args[0])
		if !ok {
			return fmt.Errorf("%w: %s", module.ErrUnknownModule, args[0])
		}
		fmt.Fprintln(out, renderModule(h.Manifest()))
		return nil
	}
	manifests := reg.Manifests()
	if capability != "" {
		names := reg.ByCapability(module.Capability(capability))
		manifests = make([]*module.Manifest, 0, len(names))
		for _, name := range names {
			h, _ := reg.Get(name)
			manifests = append(manifests, h.Manifest())
		}
	}
	fmt.Fprintln(out, renderModules(manifests))
	return nil
}

// renderModules formats one row per module.
func renderModules(manifests []*module.Manifest) string {
	tw := newTable("Module", "Name", "Capabilities", "Needs setup", "Location")
	for _, m := range manifests {
		caps := make([]string, 0, len(m.Type))
		for _, c := range m.Type {
			caps = append(caps, string(c))
		}
		setup := "no"
		if m.NeedsSetup() {
			setup = "yes"
		}
		tw.AppendRow(table.Row{m.Module(), m.Name, strings.Join(caps, ", "), setup, m.Location()})
	}
	return tw.Render()
}

// renderModule formats the description and options of one module.
func renderModule(m *module.Manifest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s) v%s\n", m.Name, m.Module(), m.Version)
	if d := strings.TrimSpace(m.Description); d != "" {
		fmt.Fprintf(&b, "\n%s\n", d)
	}
	if len(m.Dependencies.Modules) > 0 {
		fmt.Fprintf(&b, "\nDepends on: %s\n", strings.Join(m.Dependencies.Modules, ", "))
	}
	names := m.OptionNames()
	if len(names) == 0 {
		b.WriteString("\nNo options.")
		return b.String()
	}

	rows := make([]table.Row, 0, len(names))
	for _, name := range names {
		spec := m.Configs[name]
		def := ""
		if spec.Default != nil {
			def = fmt.Sprint(spec.Default)
		}
		flags := make([]string, 0, 2)
		if spec.Required {
			flags = append(flags, "required")
		}
		if spec.DoNotStore {
			flags = append(flags, "not stored")
		}
		help := spec.Help
		if len(spec.Choices) > 0 {
			help += " (" + strings.Join(spec.Choices, ", ") + ")"
		}
		rows = append(rows, table.Row{
			"--" + m.Module() + "." + name,
			string(spec.EffectiveType()),
			def,
			strings.Join(flags, ", "),
			strings.TrimSpace(help),
		})
	}
	b.WriteString("\n")
	b.WriteString(optionTable(m, rows))
	return b.String()
}
