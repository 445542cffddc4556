package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Compare stores and package closures",
}

var diffPathsCmd = &cobra.Command{
	Use:   "paths <store1> <store2>",
	Short: "Show paths materialized in only one of two stores",
	Args:  cobra.ExactArgs(2),
	Run:   runDiffPaths,
}

var diffClosuresCmd = &cobra.Command{
	Use:   "closures <store1> <package1> <store2> <package2>",
	Short: "Show closure paths present in only one of two packages",
	Args:  cobra.ExactArgs(4),
	Run:   runDiffClosures,
}

func init() {
	diffCmd.AddCommand(diffPathsCmd)
	diffCmd.AddCommand(diffClosuresCmd)
}

func runDiffPaths(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	difference, err := c.Service.GetPathsDifference(context.Background(), args[0], args[1], c.ownerID())
	if err != nil {
		exitError("%v", err)
	}

	if len(difference.OnlyInStore1) == 0 && len(difference.OnlyInStore2) == 0 {
		fmt.Println("No differences")
		return
	}

	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	for _, path := range difference.OnlyInStore1 {
		green.Printf("+ %s\n", path)
	}
	for _, path := range difference.OnlyInStore2 {
		red.Printf("- %s\n", path)
	}
}

func runDiffClosures(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	difference, err := c.Service.GetClosuresDifference(context.Background(), args[0], args[1], args[2], args[3], c.ownerID())
	if err != nil {
		exitError("%v", err)
	}

	if len(difference.AbsentInPackage1) == 0 && len(difference.AbsentInPackage2) == 0 {
		fmt.Println("No differences")
		return
	}

	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	for _, path := range difference.AbsentInPackage2 {
		green.Printf("+ %s\n", path)
	}
	for _, path := range difference.AbsentInPackage1 {
		red.Printf("- %s\n", path)
	}
}
