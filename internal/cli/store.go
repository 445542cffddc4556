package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Manage package stores",
}

var storeAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a new store",
	Args:  cobra.ExactArgs(1),
	Run:   runStoreAdd,
}

var storeListCmd = &cobra.Command{
	Use:   "ls",
	Short: "List your stores",
	Run:   runStoreList,
}

var storeRemoveCmd = &cobra.Command{
	Use:   "rm <name>",
	Short: "Delete a store and its contents",
	Args:  cobra.ExactArgs(1),
	Run:   runStoreRemove,
}

func init() {
	storeCmd.AddCommand(storeAddCmd)
	storeCmd.AddCommand(storeListCmd)
	storeCmd.AddCommand(storeRemoveCmd)
}

func runStoreAdd(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	store, err := c.Service.AddStore(context.Background(), args[0], c.ownerID())
	if err != nil {
		exitError("%v", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("Created store %s (id %d)\n", store.Name, store.ID)
}

func runStoreList(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	stores, err := c.Service.GetStores(context.Background(), c.ownerID())
	if err != nil {
		exitError("%v", err)
	}

	if len(stores) == 0 {
		fmt.Println("No stores")
		return
	}
	for _, store := range stores {
		fmt.Printf("%d\t%s\n", store.ID, store.Name)
	}
}

func runStoreRemove(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	store, err := c.Service.DeleteStore(context.Background(), args[0], c.ownerID())
	if err != nil {
		exitError("%v", err)
	}

	red := color.New(color.FgRed)
	red.Printf("Deleted store %s\n", store.Name)
}
