package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/dropDatabas3/civicauth/internal/adminclient"
	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// flags globales
var (
	serverAddr string
	adminKey   string
	outFormat  string
	envFile    string
)

var rootCmd = &cobra.Command{
	Use:   "civicauth",
	Short: "civicauth: login social, emisión y verificación de JWT con rotación de claves",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if envFile != "" {
			// .env es opcional
			_ = godotenv.Load(envFile)
		}
		if serverAddr == "" {
			serverAddr = getenv("CIVICAUTH_SERVER", "http://localhost:8080")
		}
		if adminKey == "" {
			adminKey = os.Getenv("ADMIN_API_KEY")
		}
		switch outFormat {
		case "table", "json":
			return nil
		default:
			return fmt.Errorf("invalid --out %q (table|json)", outFormat)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "ruta a .env")
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", "", "URL del server (default $CIVICAUTH_SERVER o http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&adminKey, "admin-key", "", "API key del admin (default $ADMIN_API_KEY)")
	rootCmd.PersistentFlags().StringVarP(&outFormat, "out", "o", "table", "formato de salida: table|json")

	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
}

func client() *adminclient.Client {
	return adminclient.New(serverAddr, adminKey)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, redCross, err)
		os.Exit(1)
	}
}

func getenv(k, d string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return d
}

var (
	greenCheck = color.GreenString("✔")
	redCross   = color.RedString("✘")
)
