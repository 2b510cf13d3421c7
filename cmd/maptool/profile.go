package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/librescoot/maptool/internal/profile"
)

func newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage layer-keep profiles",
	}

	cmd.AddCommand(
		newProfileListCmd(),
		newProfileShowCmd(),
		newProfileCreateCmd(),
		newProfileUpdateCmd(),
		newProfileDeleteCmd(),
		newProfileSetDefaultCmd(),
	)
	return cmd
}

func openProfileDB(cmd *cobra.Command) (*profile.Store, error) {
	dbPath, _ := cmd.Flags().GetString("db")
	return profile.Open(dbPath)
}

func withDBFlag(cmd *cobra.Command) *cobra.Command {
	cmd.Flags().String("db", "profiles.db", "Path to the profile store")
	return cmd
}

func newProfileListCmd() *cobra.Command {
	return withDBFlag(&cobra.Command{
		Use:   "list",
		Short: "List all profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openProfileDB(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			profiles, err := store.List()
			if err != nil {
				return err
			}
			for _, p := range profiles {
				marker := " "
				if p.IsDefault {
					marker = "*"
				}
				fmt.Printf("%s %s\t%s\t(%d layers)\n", marker, p.ID, p.Name, len(p.LayersToKeep))
			}
			return nil
		},
	})
}

func newProfileShowCmd() *cobra.Command {
	return withDBFlag(&cobra.Command{
		Use:   "show <id>",
		Short: "Show one profile's detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openProfileDB(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			p, err := store.Get(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("id:         %s\n", p.ID)
			fmt.Printf("name:       %s\n", p.Name)
			fmt.Printf("is_default: %v\n", p.IsDefault)
			fmt.Printf("layers:     %s\n", strings.Join(sortedKeys(p.LayersToKeep), ", "))
			return nil
		},
	})
}

func newProfileCreateCmd() *cobra.Command {
	var name, keep string

	cmd := withDBFlag(&cobra.Command{
		Use:   "create",
		Short: "Create a new profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openProfileDB(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			p, err := store.Insert(profile.Profile{
				Name:         name,
				LayersToKeep: parseLayerList(keep),
			})
			if err != nil {
				return err
			}
			fmt.Println(p.ID)
			return nil
		},
	})
	cmd.Flags().StringVar(&name, "name", "", "Profile name (required)")
	cmd.Flags().StringVar(&keep, "keep", "", "Comma-separated list of layer names to keep")
	cmd.MarkFlagRequired("name")
	return cmd
}

func newProfileUpdateCmd() *cobra.Command {
	var name, keep string

	cmd := withDBFlag(&cobra.Command{
		Use:   "update <id>",
		Short: "Update an existing profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openProfileDB(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			p, err := store.Get(args[0])
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("name") {
				p.Name = name
			}
			if cmd.Flags().Changed("keep") {
				p.LayersToKeep = parseLayerList(keep)
			}
			return store.Update(p)
		},
	})
	cmd.Flags().StringVar(&name, "name", "", "New profile name")
	cmd.Flags().StringVar(&keep, "keep", "", "New comma-separated list of layer names to keep")
	return cmd
}

func newProfileDeleteCmd() *cobra.Command {
	return withDBFlag(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openProfileDB(cmd)
			if err != nil {
				return err
			}
			defer store.Close()
			return store.Delete(args[0])
		},
	})
}

func newProfileSetDefaultCmd() *cobra.Command {
	return withDBFlag(&cobra.Command{
		Use:   "set-default <id>",
		Short: "Mark a profile as the default",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openProfileDB(cmd)
			if err != nil {
				return err
			}
			defer store.Close()
			return store.SetDefault(args[0])
		},
	})
}

func parseLayerList(csv string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, name := range strings.Split(csv, ",") {
		name = strings.TrimSpace(name)
		if name != "" {
			out[name] = struct{}{}
		}
	}
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
