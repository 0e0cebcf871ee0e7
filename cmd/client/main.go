package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/yashlad/fserver/internal/server"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

type cli struct {
	v           *viper.Viper
	contentType string
}

func newRootCommand() *cobra.Command {
	c := &cli{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:          "client",
		Short:        "Command line client for the fserver ingest service",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("server", "localhost:50051", "gRPC address of the server")
	rootCmd.PersistentFlags().Duration("timeout", 30*time.Second, "Per-call timeout")
	_ = c.v.BindPFlag("SERVER_ADDR", rootCmd.PersistentFlags().Lookup("server"))
	_ = c.v.BindPFlag("TIMEOUT", rootCmd.PersistentFlags().Lookup("timeout"))
	c.v.AutomaticEnv()

	rootCmd.AddCommand(c.newPingCommand())
	rootCmd.AddCommand(c.newUploadCommand())
	rootCmd.AddCommand(c.newAccountCommand())
	rootCmd.AddCommand(c.newInfoCommand())

	return rootCmd
}

func (c *cli) newPingCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the server is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withClient(cmd, func(ctx context.Context, client *server.IngestClient) error {
				reply, err := client.Ping(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), reply)
				return nil
			})
		},
	}
}

func (c *cli) newUploadCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload <path>...",
		Short: "Upload one image, or several as an all-or-nothing batch",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := readFiles(args, c.contentType)
			if err != nil {
				return err
			}
			return c.withClient(cmd, func(ctx context.Context, client *server.IngestClient) error {
				if len(files) == 1 {
					env, err := client.StoreSingle(ctx, files[0])
					if err != nil {
						return err
					}
					return printJSON(cmd, env)
				}
				out, err := client.StoreMany(ctx, files)
				if err != nil {
					return err
				}
				return printJSON(cmd, out)
			})
		},
	}
	cmd.Flags().StringVar(&c.contentType, "content-type", "", "Declared content type (sniffed from the file when empty)")
	return cmd
}

func (c *cli) newAccountCommand() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "account <path>...",
		Short: "Upload images and create an account for each",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := readFiles(args, c.contentType)
			if err != nil {
				return err
			}
			return c.withClient(cmd, func(ctx context.Context, client *server.IngestClient) error {
				if len(files) == 1 {
					env, err := client.StoreWithAccount(ctx, &server.StoreWithAccountRequest{
						File:     files[0],
						Email:    email,
						Password: password,
					})
					if err != nil {
						return err
					}
					return printJSON(cmd, env)
				}

				accounts := make([]server.StoreWithAccountRequest, len(files))
				for i, f := range files {
					accounts[i] = server.StoreWithAccountRequest{File: f, Email: email, Password: password}
				}
				out, err := client.StoreAccounts(ctx, accounts)
				if err != nil {
					return err
				}
				return printJSON(cmd, out)
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password")
	cmd.Flags().StringVar(&c.contentType, "content-type", "", "Declared content type (sniffed from the file when empty)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func (c *cli) newInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info <file_id>",
		Short: "Show the metadata of a stored file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withClient(cmd, func(ctx context.Context, client *server.IngestClient) error {
				env, err := client.FindFile(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, env)
			})
		},
	}
}

// withClient dials the server and runs fn under the configured timeout.
func (c *cli) withClient(cmd *cobra.Command, fn func(context.Context, *server.IngestClient) error) error {
	conn, err := grpc.NewClient(c.v.GetString("SERVER_ADDR"), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), c.v.GetDuration("TIMEOUT"))
	defer cancel()

	if err := fn(ctx, server.NewIngestClient(conn)); err != nil {
		if st, ok := status.FromError(err); ok {
			return fmt.Errorf("%s: %s", st.Code(), st.Message())
		}
		return err
	}
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
