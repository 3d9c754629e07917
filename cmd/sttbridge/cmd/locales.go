package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"sttbridge"
	"sttbridge/internal/bootstrap"
)

var localesCmd = &cobra.Command{
	Use:   "locales",
	Short: "List the locales the configured engine supports",
	RunE: func(cobraCmd *cobra.Command, _ []string) error {
		bridge := sttbridge.NewBridge()
		services, err := bootstrap.Build(bridge)
		if err != nil {
			return err
		}
		bridge.Bind(services.Controller)

		result, err := bridge.HandleMethod(cobraCmd.Context(), sttbridge.MethodLocales, nil)
		if err != nil {
			return err
		}
		locales, ok := result.([]string)
		if !ok {
			return fmt.Errorf("unexpected locales result %T", result)
		}
		for _, l := range locales {
			fmt.Fprintln(cobraCmd.OutOrStdout(), l)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(localesCmd)
}
