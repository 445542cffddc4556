package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var pkgCmd = &cobra.Command{
	Use:   "pkg",
	Short: "Manage packages inside a store",
}

var pkgAddCmd = &cobra.Command{
	Use:   "add <store> <package>",
	Short: "Install a package into a store",
	Args:  cobra.ExactArgs(2),
	Run:   runPkgAdd,
}

var pkgRemoveCmd = &cobra.Command{
	Use:   "rm <store> <package>",
	Short: "Remove a package from a store",
	Args:  cobra.ExactArgs(2),
	Run:   runPkgRemove,
}

var pkgMetaCmd = &cobra.Command{
	Use:   "meta <store> <package>",
	Short: "Show whether a package is present and its closure size",
	Args:  cobra.ExactArgs(2),
	Run:   runPkgMeta,
}

var pkgShowClosure bool

func init() {
	pkgAddCmd.Flags().BoolVar(&pkgShowClosure, "closure", false, "Print the package closure after installing")

	pkgCmd.AddCommand(pkgAddCmd)
	pkgCmd.AddCommand(pkgRemoveCmd)
	pkgCmd.AddCommand(pkgMetaCmd)
}

func runPkgAdd(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	pkg, err := c.Service.AddPackage(context.Background(), args[0], args[1], c.ownerID())
	if err != nil {
		exitError("%v", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("Installed %s into %s (%d closure paths)\n", pkg.Name, args[0], len(pkg.Closure.Paths))

	if pkgShowClosure {
		for _, path := range pkg.Closure.Paths {
			fmt.Println(path)
		}
	}
}

func runPkgRemove(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	pkg, err := c.Service.DeletePackage(context.Background(), args[0], args[1], c.ownerID())
	if err != nil {
		exitError("%v", err)
	}

	red := color.New(color.FgRed)
	red.Printf("Removed %s from %s\n", pkg.Name, args[0])
}

func runPkgMeta(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	meta, err := c.Service.GetPackageMeta(context.Background(), args[0], args[1], c.ownerID())
	if err != nil {
		exitError("%v", err)
	}

	if !meta.Present {
		color.New(color.FgYellow).Printf("%s is no longer present in %s\n", args[1], args[0])
		return
	}
	fmt.Printf("%s: present, closure size %d bytes\n", args[1], meta.ClosureSize)
}
