// cmd/client is the CLI entry-point built with Cobra.
//
// Usage:
//
//	docctl create                                       --server http://localhost:8080
//	docctl insert <doc-id> "hello"                       --server http://localhost:8080
//	docctl insert <doc-id> "world" --left ssn.sum.sid.seq
//	docctl update <doc-id> ssn.sum.sid.seq "hello there"
//	docctl delete <doc-id> ssn.sum.sid.seq
//	docctl read <doc-id>
//	docctl cluster nodes
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hayley-d/collaborative-coding-backend/internal/client"
	"github.com/hayley-d/collaborative-coding-backend/internal/s4vector"
)

var (
	serverAddr string
	timeout    time.Duration
	leftFlag   string
	rightFlag  string
)

func main() {
	root := &cobra.Command{
		Use:   "docctl",
		Short: "CLI client for the collaborative document service",
	}

	root.PersistentFlags().StringVarP(&serverAddr, "server", "s",
		"http://localhost:8080", "replica address")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second,
		"HTTP request timeout")

	root.AddCommand(createCmd(), insertCmd(), updateCmd(), deleteCmd(), readCmd(), clusterCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// ─── create ───────────────────────────────────────────────────────────────────

func createCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Activate a new document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverAddr, timeout)
			resp, err := c.CreateDocument(context.Background())
			if err != nil {
				return err
			}
			prettyPrint(resp)
			return nil
		},
	}
}

// ─── insert ───────────────────────────────────────────────────────────────────

func insertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "insert <doc-id> <value>",
		Short: "Insert a value into a document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			left, err := parseOptionalS4(leftFlag)
			if err != nil {
				return fmt.Errorf("--left: %w", err)
			}
			right, err := parseOptionalS4(rightFlag)
			if err != nil {
				return fmt.Errorf("--right: %w", err)
			}

			c := client.New(serverAddr, timeout)
			resp, err := c.Insert(context.Background(), args[0], args[1], left, right)
			if err != nil {
				return err
			}
			prettyPrint(resp)
			return nil
		},
	}
	cmd.Flags().StringVar(&leftFlag, "left", "", "left anchor S4Vector (ssn.sum.sid.seq)")
	cmd.Flags().StringVar(&rightFlag, "right", "", "right anchor S4Vector (ssn.sum.sid.seq)")
	return cmd
}

// ─── update ───────────────────────────────────────────────────────────────────

func updateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update <doc-id> <s4vector> <value>",
		Short: "Change the value stored at an existing node",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseS4(args[1])
			if err != nil {
				return err
			}
			c := client.New(serverAddr, timeout)
			resp, err := c.Update(context.Background(), args[0], id, args[2])
			if err != nil {
				return err
			}
			prettyPrint(resp)
			return nil
		},
	}
}

// ─── delete ───────────────────────────────────────────────────────────────────

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <doc-id> <s4vector>",
		Short: "Tombstone a node",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseS4(args[1])
			if err != nil {
				return err
			}
			c := client.New(serverAddr, timeout)
			resp, err := c.Delete(context.Background(), args[0], id)
			if err != nil {
				return err
			}
			prettyPrint(resp)
			return nil
		},
	}
}

// ─── read ─────────────────────────────────────────────────────────────────────

func readCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read <doc-id>",
		Short: "Print the live sequence of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverAddr, timeout)
			resp, err := c.Read(context.Background(), args[0])
			if err == client.ErrDocumentNotFound {
				fmt.Printf("document %q not found\n", args[0])
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Println(strings.Join(resp.Values, ""))
			return nil
		},
	}
}

// ─── cluster ──────────────────────────────────────────────────────────────────

func clusterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cluster",
		Short: "Cluster management commands",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "nodes",
		Short: "List all cluster replicas",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverAddr, timeout)
			resp, err := c.GetRaw(context.Background(), "/cluster/nodes")
			if err != nil {
				return err
			}
			fmt.Println(resp)
			return nil
		},
	})

	joinCmd := &cobra.Command{
		Use:   "join <nodeID> <address>",
		Short: "Join a replica to the cluster",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverAddr, timeout)
			return c.JoinCluster(context.Background(), args[0], args[1])
		},
	}

	leaveCmd := &cobra.Command{
		Use:   "leave <nodeID>",
		Short: "Remove a replica from the cluster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverAddr, timeout)
			return c.LeaveCluster(context.Background(), args[0])
		},
	}

	cmd.AddCommand(joinCmd, leaveCmd)
	return cmd
}

// ─── helpers ──────────────────────────────────────────────────────────────────

func parseOptionalS4(raw string) (*s4vector.S4Vector, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := parseS4(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func parseS4(raw string) (s4vector.S4Vector, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 4 {
		return s4vector.S4Vector{}, fmt.Errorf("expected ssn.sum.sid.seq, got %q", raw)
	}
	nums := make([]uint64, 4)
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return s4vector.S4Vector{}, fmt.Errorf("invalid component %q: %w", p, err)
		}
		nums[i] = n
	}
	return s4vector.S4Vector{Ssn: nums[0], Sum: nums[1], Sid: nums[2], Seq: nums[3]}, nil
}

func prettyPrint(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Println(v)
		return
	}
	fmt.Println(string(data))
}
