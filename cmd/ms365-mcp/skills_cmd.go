package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Mirec2221-dotcom/ms-365-mcp-server/internal/store"
)

func skillsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "skills",
		Short: "List, inspect and run skills",
	}
	cmd.AddCommand(skillsListCmd())
	cmd.AddCommand(skillsShowCmd())
	cmd.AddCommand(skillsRunCmd())
	return cmd
}

func skillsListCmd() *cobra.Command {
	var jsonOutput bool
	var category string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored skills by usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer a.close()

			list, err := a.store.List(&store.ListFilter{Category: category})
			if err != nil {
				return err
			}

			if jsonOutput {
				data, _ := json.MarshalIndent(list, "", "  ")
				fmt.Println(string(data))
				return nil
			}

			if len(list) == 0 {
				fmt.Println("No skills found.")
				return nil
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "NAME\tCATEGORY\tUSES\tBUILTIN\tDESCRIPTION\n")
			for _, s := range list {
				desc := s.Description
				if len(desc) > 60 {
					desc = desc[:57] + "..."
				}
				builtin := ""
				if s.IsBuiltin {
					builtin = "yes"
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", s.Name, s.Category, s.UsageCount, builtin, desc)
			}
			tw.Flush()
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.Flags().StringVar(&category, "category", "", "filter by category")
	return cmd
}

func skillsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [id-or-name]",
		Short: "Show a skill's definition and code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer a.close()

			skill, err := a.store.Get(args[0])
			if err != nil {
				skill, err = a.store.GetByName(args[0])
			}
			if err != nil {
				return err
			}

			fmt.Printf("Name:        %s\n", skill.Name)
			fmt.Printf("ID:          %s\n", skill.ID)
			fmt.Printf("Category:    %s\n", skill.Category)
			fmt.Printf("Description: %s\n", skill.Description)
			fmt.Printf("Uses:        %d\n", skill.UsageCount)
			fmt.Printf("Builtin:     %v\n", skill.IsBuiltin)
			if len(skill.Parameters) > 0 {
				fmt.Println("Parameters:")
				for name, p := range skill.Parameters {
					req := ""
					if p.Required {
						req = " (required)"
					}
					fmt.Printf("  %s: %s%s  %s\n", name, p.Type, req, p.Description)
				}
			}
			fmt.Println()
			fmt.Println(skill.Code)
			return nil
		},
	}
}

func skillsRunCmd() *cobra.Command {
	var paramsJSON string
	var timeoutMs int
	cmd := &cobra.Command{
		Use:   "run [id-or-name]",
		Short: "Execute a skill and print its result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer a.close()

			var params map[string]any
			if paramsJSON != "" {
				if err := json.Unmarshal([]byte(paramsJSON), &params); err != nil {
					return fmt.Errorf("invalid --params JSON: %w", err)
				}
			}

			run, err := a.executor.Run(cmd.Context(), args[0], params, time.Duration(timeoutMs)*time.Millisecond)
			if err != nil {
				return err
			}
			data, _ := json.MarshalIndent(run, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	}
	cmd.Flags().StringVar(&paramsJSON, "params", "", "parameter values as a JSON object")
	cmd.Flags().IntVar(&timeoutMs, "timeout", 0, "execution budget in milliseconds")
	return cmd
}
