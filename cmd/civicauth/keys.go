package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dropDatabas3/civicauth/internal/jwt"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Administra las claves de firma de un server corriendo",
}

var keysListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "Lista las claves con su estado",
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := client().Keys(cmd.Context())
		if err != nil {
			return fmt.Errorf("listing keys: %w", err)
		}
		if outFormat == "json" {
			return printJSON(res)
		}

		t := newTable()
		t.AppendHeader(table.Row{"Kid", "Status", "Created", "Age", "Bits", ""})
		for _, k := range res.Keys {
			status := color.GreenString(string(k.Status))
			if k.Status == jwt.KeyDeprecated {
				status = color.YellowString(string(k.Status))
			}
			cur := ""
			if k.Current {
				cur = color.New(color.Bold).Sprint("current")
			}
			t.AppendRow(table.Row{k.ID, status, k.CreatedAt.Format(time.RFC3339), humanAge(k.CreatedAt), k.Bits, cur})
		}
		t.Render()
		fmt.Printf("deprecation threshold: %d days\n", res.ThresholdDays)
		return nil
	},
}

var keysRotateCmd = &cobra.Command{
	Use:   "rotate",
	Short: "Genera una clave nueva y la vuelve la clave de firma actual",
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := client().Rotate(cmd.Context())
		if err != nil {
			return fmt.Errorf("rotating: %w", err)
		}
		if outFormat == "json" {
			return printJSON(res)
		}
		fmt.Printf("%s new signing key %s\n", greenCheck, color.New(color.Bold).Sprint(res.KeyID))
		return nil
	},
}

var (
	deprecateOlderThan string
	deprecateForce     bool
)

var keysDeprecateCmd = &cobra.Command{
	Use:   "deprecate",
	Short: "Depreca las claves más viejas que el corte (default: umbral del scheduler)",
	RunE: func(cmd *cobra.Command, args []string) error {
		var cutoff time.Time
		if deprecateOlderThan != "" {
			t, err := time.Parse(time.RFC3339, deprecateOlderThan)
			if err != nil {
				return fmt.Errorf("invalid --older-than: %w", err)
			}
			cutoff = t
		}
		res, err := client().Deprecate(cmd.Context(), cutoff, deprecateForce)
		if err != nil {
			return fmt.Errorf("deprecating: %w", err)
		}
		if outFormat == "json" {
			return printJSON(res)
		}
		printChanged("deprecated", res.KeyIDs)
		return nil
	},
}

var keysPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Elimina las claves deprecadas",
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := client().Purge(cmd.Context())
		if err != nil {
			return fmt.Errorf("purging: %w", err)
		}
		if outFormat == "json" {
			return printJSON(res)
		}
		printChanged("purged", res.KeyIDs)
		return nil
	},
}

var jwksCmd = &cobra.Command{
	Use:   "jwks",
	Short: "Muestra el documento JWKS público",
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := client().JWKS(cmd.Context())
		if err != nil {
			return fmt.Errorf("fetching jwks: %w", err)
		}
		if outFormat == "json" {
			return printJSON(doc)
		}
		t := newTable()
		t.AppendHeader(table.Row{"Kid", "Kty", "Alg", "Use"})
		for _, k := range doc.Keys {
			t.AppendRow(table.Row{k.KID, k.Kty, k.Alg, k.Use})
		}
		t.Render()
		return nil
	},
}

func printChanged(verb string, kids []string) {
	if len(kids) == 0 {
		fmt.Printf("%s nothing %s\n", greenCheck, verb)
		return
	}
	for _, k := range kids {
		fmt.Fprintf(os.Stdout, "%s %s %s\n", greenCheck, verb, color.New(color.Bold).Sprint(k))
	}
}

func init() {
	keysDeprecateCmd.Flags().StringVar(&deprecateOlderThan, "older-than", "", "corte RFC3339")
	keysDeprecateCmd.Flags().BoolVar(&deprecateForce, "force", false, "acepta un corte posterior al umbral (invalida refresh tokens vigentes)")
	keysCmd.AddCommand(keysListCmd, keysRotateCmd, keysDeprecateCmd, keysPurgeCmd)
	rootCmd.AddCommand(keysCmd, jwksCmd)
}
