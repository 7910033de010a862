package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/felo/classifier-console/internal/api"
	"github.com/felo/classifier-console/internal/view"
	"github.com/spf13/cobra"
)

// Output formats
const (
	outputTable = "table"
	outputJSON  = "json"
)

func (a *app) newListCmd() *cobra.Command {
	var (
		opts   api.ListOptions
		output string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List classified emails",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.SortBy != "" && !api.ValidSortBy(opts.SortBy) {
				return fmt.Errorf("invalid --sort-by %q", opts.SortBy)
			}
			if opts.SortOrder != "" && !api.ValidSortOrder(opts.SortOrder) {
				return fmt.Errorf("invalid --sort-order %q, use asc or desc", opts.SortOrder)
			}

			emails, err := a.client().ListEmails(cmd.Context(), opts)
			if err != nil {
				return fmt.Errorf("failed to load emails: %w", err)
			}

			out := cmd.OutOrStdout()
			switch output {
			case outputJSON:
				return writeJSON(out, emails)
			case outputTable:
				if len(emails) == 0 {
					fmt.Fprintln(out, "No emails yet. Submit your first email!")
					return nil
				}
				return a.writeEmailTable(out, emails)
			default:
				return fmt.Errorf("invalid --output %q, use table or json", output)
			}
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&opts.Skip, "skip", 0, "Number of emails to skip")
	flags.IntVar(&opts.Limit, "limit", api.DefaultLimit, "Maximum number of emails to return")
	flags.StringVar(&opts.SortBy, "sort-by", api.SortByReceivedAt, "Sort field: received_at, category, from_address, subject, id")
	flags.StringVar(&opts.SortOrder, "sort-order", api.SortDesc, "Sort order: asc or desc")
	flags.StringVarP(&output, "output", "o", outputTable, "Output format: table or json")

	return cmd
}

func (a *app) newGetCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id < 1 {
				return fmt.Errorf("invalid email ID %q", args[0])
			}

			email, err := a.client().GetEmail(cmd.Context(), id)
			if errors.Is(err, api.ErrNotFound) {
				return fmt.Errorf("email %d not found", id)
			}
			if err != nil {
				return fmt.Errorf("failed to load email: %w", err)
			}

			out := cmd.OutOrStdout()
			if output == outputJSON {
				return writeJSON(out, email)
			}

			fmt.Fprintf(out, "ID:       %d\n", email.ID)
			fmt.Fprintf(out, "From:     %s\n", email.FromAddress)
			fmt.Fprintf(out, "Subject:  %s\n", email.Subject)
			fmt.Fprintf(out, "Category: %s\n", email.Category)
			fmt.Fprintf(out, "Received: %s\n", view.FormatDate(email.ReceivedAt, a.location()))
			fmt.Fprintf(out, "\n%s\n", email.Body)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "Output format: table or json")
	return cmd
}

func (a *app) newSubmitCmd() *cobra.Command {
	var (
		input    api.EmailCreate
		bodyFile string
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit one email for classification",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if bodyFile != "" {
				data, err := readBody(cmd.InOrStdin(), bodyFile)
				if err != nil {
					return err
				}
				input.Body = string(data)
			}

			input = input.Trimmed()
			if err := input.Validate(); err != nil {
				return err
			}

			email, err := a.client().CreateEmail(cmd.Context(), input)
			if err != nil {
				return fmt.Errorf("failed to submit email: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Email submitted and classified successfully!")
			fmt.Fprintf(out, "ID: %d\nCategory: %s\n", email.ID, email.Category)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&input.FromAddress, "from", "", "Sender address")
	flags.StringVar(&input.Subject, "subject", "", "Email subject")
	flags.StringVar(&input.Body, "body", "", "Email body")
	flags.StringVar(&bodyFile, "body-file", "", "Read the body from a file (- for stdin)")
	cmd.MarkFlagsMutuallyExclusive("body", "body-file")

	return cmd
}

func (a *app) newClearCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every email",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to delete every email without --yes")
			}

			result, err := a.client().ClearAll(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to clear emails: %w", err)
			}

			out := cmd.OutOrStdout()
			switch {
			case result.Message != "":
				fmt.Fprintln(out, result.Message)
			default:
				fmt.Fprintf(out, "Deleted %d emails\n", result.DeletedCount)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm deletion")
	return cmd
}

func (a *app) writeEmailTable(out io.Writer, emails []api.Email) error {
	loc := a.location()

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tRECEIVED\tCATEGORY\tFROM\tSUBJECT")
	for _, e := range emails {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			e.ID,
			view.FormatDate(e.ReceivedAt, loc),
			e.Category,
			e.FromAddress,
			view.Truncate(strings.ReplaceAll(e.Subject, "\t", " "), 60),
		)
	}
	return tw.Flush()
}

func (a *app) location() *time.Location {
	loc, err := a.cfg.Location()
	if err != nil {
		return time.Local
	}
	return loc
}

func readBody(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read body from stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read body file: %w", err)
	}
	return data, nil
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
