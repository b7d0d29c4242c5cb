package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// mustGetBool значение флага bool. Отсутствие флага - ошибка программы
func mustGetBool(cmd *cobra.Command, name string) bool {
	val, err := cmd.Flags().GetBool(name)
	if err != nil {
		panic(fmt.Sprintf("ошибка флага --%s: %v", name, err))
	}
	return val
}

// mustGetString значение флага string
func mustGetString(cmd *cobra.Command, name string) string {
	val, err := cmd.Flags().GetString(name)
	if err != nil {
		panic(fmt.Sprintf("ошибка флага --%s: %v", name, err))
	}
	return val
}
