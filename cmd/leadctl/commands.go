package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/lead-manager/internal/api/dto"
	"github.com/spec-kit/lead-manager/internal/client"
	"github.com/spec-kit/lead-manager/internal/config"
	"github.com/spec-kit/lead-manager/internal/domain"
	"github.com/spec-kit/lead-manager/internal/observability"
	"github.com/spec-kit/lead-manager/internal/persistence"
	"github.com/spec-kit/lead-manager/internal/view"
)

// clientFactory builds the API client and a cleanup func for one command run.
type clientFactory func(ctx context.Context) (*client.Client, func(), error)

func defaultClientFactory(ctx context.Context) (*client.Client, func(), error) {
	cfg, err := config.LoadClient()
	if err != nil {
		return nil, nil, err
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return nil, nil, err
	}

	var cache client.Cache = client.NewMemoryCache()
	cleanup := func() { _ = logger.Sync() }
	if cfg.Redis.Addr != "" {
		redisConn := persistence.NewRedis(ctx, cfg.Redis, logger)
		cache = client.NewRedisCache(redisConn.Client, "")
		cleanup = func() {
			redisConn.Close()
			_ = logger.Sync()
		}
	}

	httpClient := &http.Client{Timeout: cfg.Timeout()}
	logger.Debug("using lead api", zap.String("url", cfg.APIURL))
	return client.New(cfg.APIURL, httpClient, cache, logger), cleanup, nil
}

type cli struct {
	factory    clientFactory
	jsonOutput bool
}

func newRootCmd(factory clientFactory) *cobra.Command {
	c := &cli{factory: factory}
	root := &cobra.Command{
		Use:           "leadctl",
		Short:         "Manage sales leads from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&c.jsonOutput, "json", false, "print JSON instead of a table")

	root.AddCommand(
		c.listCmd(),
		c.categoriesCmd(),
		c.getCmd(),
		c.createCmd(),
		c.updateCmd(),
		c.deleteCmd(),
		c.uploadCmd(),
	)
	return root
}

func (c *cli) withClient(cmd *cobra.Command, fn func(context.Context, *client.Client) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	api, cleanup, err := c.factory(ctx)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}
	return fn(ctx, api)
}

func (c *cli) listCmd() *cobra.Command {
	var (
		status   string
		category string
		sortBy   string
		desc     bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List leads",
		Long: `List leads, optionally filtered and sorted.

Examples:
  leadctl list --status pending
  leadctl list --category healthcare --sort companyName
  leadctl list --sort name --desc`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := view.Query{Status: status, Category: category, Sort: view.DefaultSortState()}
			if cmd.Flags().Changed("sort") || cmd.Flags().Changed("desc") {
				q.Sort = view.SortState{Field: sortBy, Direction: view.Ascending}
				if desc {
					q.Sort.Direction = view.Descending
				}
			}
			return c.withClient(cmd, func(ctx context.Context, api *client.Client) error {
				leads, err := api.ListLeads(ctx)
				if err != nil {
					return err
				}
				projected, err := view.Project(leads, q)
				if err != nil {
					return err
				}
				return c.printLeads(cmd.OutOrStdout(), projected)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", view.All, "status filter ("+statusList()+" or all)")
	cmd.Flags().StringVar(&category, "category", view.All, "category filter")
	cmd.Flags().StringVar(&sortBy, "sort", "createdAt", "sort field ("+strings.Join(view.SortableFields(), ", ")+")")
	cmd.Flags().BoolVar(&desc, "desc", false, "sort descending")
	return cmd
}

func (c *cli) categoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List the categories present across all leads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withClient(cmd, func(ctx context.Context, api *client.Client) error {
				leads, err := api.ListLeads(ctx)
				if err != nil {
					return err
				}
				categories := view.Categories(leads)
				if c.jsonOutput {
					return writeJSON(cmd.OutOrStdout(), categories)
				}
				for _, category := range categories {
					fmt.Fprintln(cmd.OutOrStdout(), category)
				}
				return nil
			})
		},
	}
}

func (c *cli) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show one lead",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withClient(cmd, func(ctx context.Context, api *client.Client) error {
				lead, err := api.GetLead(ctx, args[0])
				if err != nil {
					return err
				}
				return c.printLead(cmd.OutOrStdout(), lead)
			})
		},
	}
}

type leadFlags struct {
	name, company, website, email, phone, address string
	status, category, requirements, contactedBy  string
}

func (f *leadFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "contact name")
	cmd.Flags().StringVar(&f.company, "company", "", "company name")
	cmd.Flags().StringVar(&f.website, "website", "", "website")
	cmd.Flags().StringVar(&f.email, "email", "", "email address")
	cmd.Flags().StringVar(&f.phone, "phone", "", "phone number")
	cmd.Flags().StringVar(&f.address, "address", "", "postal address")
	cmd.Flags().StringVar(&f.status, "status", "", "status ("+statusList()+")")
	cmd.Flags().StringVar(&f.category, "category", "", "category (classified from company and requirements when empty)")
	cmd.Flags().StringVar(&f.requirements, "requirements", "", "additional requirements")
	cmd.Flags().StringVar(&f.contactedBy, "contacted-by", "", "staff member ("+staffList()+")")
}

func (c *cli) createCmd() *cobra.Command {
	var f leadFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a lead",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := dto.CreateLeadRequest{
				Name:                   f.name,
				CompanyName:            f.company,
				Website:                f.website,
				Email:                  f.email,
				PhoneNumber:            f.phone,
				Address:                f.address,
				Status:                 domain.LeadStatus(f.status),
				Category:               f.category,
				AdditionalRequirements: f.requirements,
			}
			if f.contactedBy != "" {
				member := domain.StaffMember(f.contactedBy)
				req.ContactedBy = &member
			}
			return c.withClient(cmd, func(ctx context.Context, api *client.Client) error {
				lead, err := api.CreateLead(ctx, req)
				if err != nil {
					return err
				}
				return c.printLead(cmd.OutOrStdout(), lead)
			})
		},
	}
	f.register(cmd)
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("company")
	return cmd
}

func (c *cli) updateCmd() *cobra.Command {
	var (
		f     leadFlags
		clearStaff bool
	)
	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Update fields of a lead",
		Long: `Update fields of a lead. Only the flags you pass are sent.

Examples:
  leadctl update 42 --status contacted --contacted-by NAZEEB
  leadctl update 42 --clear-contacted-by`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if clearStaff && cmd.Flags().Changed("contacted-by") {
				return fmt.Errorf("--contacted-by and --clear-contacted-by are mutually exclusive")
			}
			req := updateRequest(cmd, f)
			if clearStaff {
				req.ContactedBy = dto.NullableStaff{Set: true}
			}
			return c.withClient(cmd, func(ctx context.Context, api *client.Client) error {
				lead, err := api.UpdateLead(ctx, args[0], req)
				if err != nil {
					return err
				}
				return c.printLead(cmd.OutOrStdout(), lead)
			})
		},
	}
	f.register(cmd)
	cmd.Flags().BoolVar(&clearStaff, "clear-contacted-by", false, "remove the contactedBy assignment")
	return cmd
}

func updateRequest(cmd *cobra.Command, f leadFlags) dto.UpdateLeadRequest {
	var req dto.UpdateLeadRequest
	str := func(flag string, value string) *string {
		if !cmd.Flags().Changed(flag) {
			return nil
		}
		return &value
	}
	req.Name = str("name", f.name)
	req.CompanyName = str("company", f.company)
	req.Website = str("website", f.website)
	req.Email = str("email", f.email)
	req.PhoneNumber = str("phone", f.phone)
	req.Address = str("address", f.address)
	req.Category = str("category", f.category)
	req.AdditionalRequirements = str("requirements", f.requirements)
	if cmd.Flags().Changed("status") {
		status := domain.LeadStatus(f.status)
		req.Status = &status
	}
	if cmd.Flags().Changed("contacted-by") {
		member := domain.StaffMember(f.contactedBy)
		req.ContactedBy = dto.NullableStaff{Set: true, Value: &member}
	}
	return req
}

func (c *cli) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a lead",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withClient(cmd, func(ctx context.Context, api *client.Client) error {
				if err := api.DeleteLead(ctx, args[0]); err != nil {
					return err
				}
				if c.jsonOutput {
					return writeJSON(cmd.OutOrStdout(), map[string]string{"deleted": args[0]})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
				return nil
			})
		},
	}
}

func (c *cli) uploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload FILE",
		Short: "Import leads from an .xlsx or .csv file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer file.Close()

			return c.withClient(cmd, func(ctx context.Context, api *client.Client) error {
				result, err := api.UploadLeads(ctx, args[0], file)
				if err != nil {
					return err
				}
				if c.jsonOutput {
					return writeJSON(cmd.OutOrStdout(), map[string]any{
						"inserted": result.Inserted,
						"meta":     dto.ImportMeta{Inserted: len(result.Inserted), Rejected: result.Rejected},
					})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d leads, skipped %d rows\n", len(result.Inserted), result.Rejected)
				return c.printLeads(cmd.OutOrStdout(), result.Inserted)
			})
		},
	}
}

func (c *cli) printLeads(w io.Writer, leads []domain.Lead) error {
	if c.jsonOutput {
		return writeJSON(w, leads)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCOMPANY\tSTATUS\tCATEGORY\tCONTACTED BY\tEMAIL\tPHONE")
	for _, lead := range leads {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			lead.ID, lead.Name, lead.CompanyName, lead.Status, lead.Category,
			staffName(lead.ContactedBy), lead.Email, lead.PhoneNumber)
	}
	return tw.Flush()
}

func (c *cli) printLead(w io.Writer, lead *domain.Lead) error {
	if c.jsonOutput {
		return writeJSON(w, lead)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	rows := [][2]string{
		{"ID", lead.ID},
		{"Name", lead.Name},
		{"Company", lead.CompanyName},
		{"Website", lead.Website},
		{"Email", lead.Email},
		{"Phone", lead.PhoneNumber},
		{"Address", lead.Address},
		{"Status", string(lead.Status)},
		{"Category", lead.Category},
		{"Requirements", lead.AdditionalRequirements},
		{"Contacted by", staffName(lead.ContactedBy)},
		{"Created", lead.CreatedAt.Format("2006-01-02 15:04:05")},
		{"Updated", lead.UpdatedAt.Format("2006-01-02 15:04:05")},
	}
	for _, row := range rows {
		fmt.Fprintf(tw, "%s:\t%s\n", row[0], row[1])
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func staffName(member *domain.StaffMember) string {
	if member == nil {
		return "-"
	}
	return string(*member)
}

func statusList() string {
	names := make([]string, len(domain.LeadStatuses))
	for i, s := range domain.LeadStatuses {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

func staffList() string {
	names := make([]string, len(domain.StaffMembers))
	for i, m := range domain.StaffMembers {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}
