package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var userAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Register a new user",
	Args:  cobra.ExactArgs(1),
	Run:   runUserAdd,
}

func init() {
	userCmd.AddCommand(userAddCmd)
}

func runUserAdd(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	id, err := c.Index.CreateUser(context.Background(), args[0])
	if err != nil {
		exitError("failed to create user: %v", err)
	}

	fmt.Printf("Created user %s (id %d)\n", args[0], id)
}
