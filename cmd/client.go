package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/afoley587/coding-challenges-2025/usersvc/internal/client"
	"github.com/afoley587/coding-challenges-2025/usersvc/internal/model"
)

const clientTimeout = 10 * time.Second

var (
	// server address
	clientServerAddr string

	// create/get/update fields
	newName  string
	newEmail string
	newAge   int
	userId   int64

	// TLS flags
	insecure      bool
	tlsCA         string
	tlsClientCert string
	tlsClientKey  string
)

// Build DialConfig from CLI flags
func getDialConfig() client.DialConfig {
	return client.DialConfig{
		Address:    clientServerAddr,
		Insecure:   insecure,
		RootCA:     tlsCA,
		ClientCert: tlsClientCert,
		ClientKey:  tlsClientKey,
	}
}

// Wrapper to build a high-level client
func getClient() (*client.GRPCClient, error) {
	cfg := getDialConfig()
	return client.NewClient(cfg)
}

// withClient dials the server and runs fn under the client timeout.
func withClient(cmd *cobra.Command, fn func(ctx context.Context, c *client.GRPCClient) error) error {
	c, err := getClient()
	if err != nil {
		return err
	}
	defer c.Close()
	ctx, cancel := context.WithTimeout(cmd.Context(), clientTimeout)
	defer cancel()
	return fn(ctx, c)
}

// Root client command
var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Interact with the gRPC server",
	Long:  "Commands for listing, creating, retrieving, updating and deleting users via the gRPC client.",
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all users",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.GRPCClient) error {
			logger.Debug("listing users", zap.String("addr", clientServerAddr))
			users, err := c.ListUsers(ctx)
			if err != nil {
				return err
			}
			for _, u := range users {
				fmt.Printf("%+v\n", *u)
			}
			return nil
		})
	},
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new user",
	RunE: func(cmd *cobra.Command, args []string) error {
		if newName == "" || newEmail == "" {
			return errors.New("both --name and --email must be specified")
		}
		return withClient(cmd, func(ctx context.Context, c *client.GRPCClient) error {
			user, err := c.Create(ctx, model.User{Name: newName, Email: newEmail, Age: newAge})
			if err != nil {
				return err
			}
			fmt.Printf("Created user: %+v\n", *user)
			return nil
		})
	},
}

var getCmd = &cobra.Command{
	Use:   "get",
	Short: "Get a user by ID or email",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.GRPCClient) error {
			var (
				user *model.User
				err  error
			)
			if newEmail != "" {
				user, err = c.GetUserByEmail(ctx, newEmail)
			} else {
				user, err = c.GetUser(ctx, userId)
			}
			if err != nil {
				return err
			}
			if user == nil {
				fmt.Println("User not found")
				return nil
			}
			fmt.Printf("%+v\n", *user)
			return nil
		})
	},
}

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Replace name, email and age of a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.GRPCClient) error {
			user, err := c.UpdateUser(ctx, userId, model.Fields{Name: newName, Email: newEmail, Age: newAge})
			if err != nil {
				return err
			}
			fmt.Printf("Updated user: %+v\n", *user)
			return nil
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a user by ID",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.GRPCClient) error {
			if err := c.Delete(ctx, userId); err != nil {
				return err
			}
			fmt.Printf("Deleted user %d\n", userId)
			return nil
		})
	},
}

// addDialFlags registers the connection flags shared by the client and
// load commands.
func addDialFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&clientServerAddr,
		"addr", "a", "127.0.0.1:9090", "Server address")

	fs.BoolVar(
		&insecure, "insecure", false, "Use insecure gRPC (no TLS)")

	fs.StringVar(
		&tlsCA, "tls-ca", "", "Path to root CA certificate")

	fs.StringVar(
		&tlsClientCert, "tls-cert", "", "Path to client certificate for mTLS")

	fs.StringVar(
		&tlsClientKey, "tls-key", "", "Path to client private key for mTLS")
}

func init() {

	addDialFlags(clientCmd.PersistentFlags())

	createCmd.Flags().StringVarP(&newName, "name", "n", "", "Name of the user")

	createCmd.Flags().StringVarP(&newEmail, "email", "e", "", "Email of the user")

	createCmd.Flags().IntVar(&newAge, "age", 0, "Age of the user")

	getCmd.Flags().Int64VarP(&userId, "id", "i", 0, "ID of the user to retrieve")

	getCmd.Flags().StringVarP(&newEmail, "email", "e", "", "Look the user up by email instead of ID")

	updateCmd.Flags().Int64VarP(&userId, "id", "i", 0, "ID of the user to update")

	updateCmd.Flags().StringVarP(&newName, "name", "n", "", "New name")

	updateCmd.Flags().StringVarP(&newEmail, "email", "e", "", "New email")

	updateCmd.Flags().IntVar(&newAge, "age", 0, "New age")

	deleteCmd.Flags().Int64VarP(&userId, "id", "i", 0, "ID of the user to delete")

	clientCmd.AddCommand(listCmd, createCmd, getCmd, updateCmd, deleteCmd)
	rootCmd.AddCommand(clientCmd)
}
