package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kaivalyagandhi/catchup-app-sub002/internal/version"
)

func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version.Full())
		},
	}
}
