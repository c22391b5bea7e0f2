package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	formset "github.com/goliatone/go-formset"
	"github.com/goliatone/go-formset/pkg/collection"
	"github.com/goliatone/go-formset/pkg/holder"
	"github.com/goliatone/go-formset/pkg/record"
	"github.com/goliatone/go-formset/pkg/record/memory"
	"github.com/goliatone/go-formset/pkg/render"
	"github.com/goliatone/go-formset/pkg/schema"
	"github.com/goliatone/go-formset/pkg/validation"
	"github.com/goliatone/go-formset/pkg/widgets"
)

func newValidateCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "validate <definition>",
		Short: "Check a definition document and report every issue",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			doc, err := a.load(ctx, args[0])
			if err != nil {
				return err
			}
			_, result := validation.ValidateDocument(ctx, doc.Source(), doc.Raw())

			out := cmd.OutOrStdout()
			if asJSON {
				if err := writeJSON(out, result); err != nil {
					return err
				}
			} else {
				for _, issue := range result.Issues {
					if issue.Path != "" {
						fmt.Fprintf(out, "%s: %s\n", issue.Path, issue.Message)
						continue
					}
					fmt.Fprintln(out, issue.Message)
				}
				if result.Valid {
					fmt.Fprintf(out, "%s: ok\n", doc.Location())
				}
			}
			if !result.Valid {
				return fmt.Errorf("%w: %s has %d issue(s)", errInvalid, doc.Location(), len(result.Issues))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the validation result as JSON")
	return cmd
}

func newLintCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "lint <openapi>...",
		Short: "Report unsupported x-formset extensions in OpenAPI documents",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("%w: at least one document is required", errUsage)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			total := 0
			for _, path := range args {
				raw, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("cli: read %s: %w", path, err)
				}
				issues, err := schema.LintOpenAPI(ctx, raw)
				if err != nil {
					return fmt.Errorf("%w: %s: %s", errInvalid, path, err.Error())
				}
				for _, issue := range issues {
					fmt.Fprintf(out, "%s: %s\n", path, issue)
				}
				total += len(issues)
				a.log.Debug("linted", zap.String("document", path), zap.Int("issues", len(issues)))
			}
			if total > 0 {
				return fmt.Errorf("%w: %d unsupported extension(s)", errInvalid, total)
			}
			return nil
		},
	}
}

func newDescribeCmd(a *app) *cobra.Command {
	var (
		openapiPath string
		dataPath    string
	)
	cmd := &cobra.Command{
		Use:   "describe <definition> <collection>",
		Short: "Print the client descriptor of a collection as JSON",
		Long: `describe prints the tree a client needs to render a collection: siblings,
template siblings with their position placeholders, field widgets and the
messages shown for each failed constraint. With --data the payload is bound
first and the descriptor carries its values and errors.`,
		Args: exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var store record.Store = memory.New()
			if dataPath != "" {
				opened, err := openStore(ctx, a.cfg)
				if err != nil {
					return err
				}
				store = opened
			}
			defer store.Close()

			registry, err := a.registry(ctx, args[0], openapiPath, store)
			if err != nil {
				return err
			}
			proto, err := lookupCollection(registry, args[1])
			if err != nil {
				return err
			}

			var h holder.Holder = proto
			if dataPath != "" {
				data, err := readPayload(dataPath, cmd.InOrStdin())
				if err != nil {
					return err
				}
				h = proto.Bind(data, collection.WithLogger(a.log))
			}
			node, err := render.Describe(ctx, h, widgets.NewRegistry())
			if err != nil {
				return fmt.Errorf("cli: %w", err)
			}
			return writeJSON(cmd.OutOrStdout(), node)
		},
	}
	cmd.Flags().StringVar(&openapiPath, "openapi", "", "OpenAPI document contributing extra forms")
	cmd.Flags().StringVar(&dataPath, "data", "", "JSON payload to bind before describing (- for stdin)")
	return cmd
}

func newReconcileCmd(a *app) *cobra.Command {
	var (
		openapiPath string
		rootRef     string
		yes         bool
	)
	cmd := &cobra.Command{
		Use:   "reconcile <definition> <collection> <payload.json>",
		Short: "Validate a payload and persist it into the configured store",
		Long: `reconcile validates the payload against the collection and, after
confirmation, creates, updates and deletes records to match it.

--root names the record the collection edits: "company" creates a new one,
"company:7" updates the stored row 7.`,
		Args: exactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			store, err := openStore(ctx, a.cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			registry, err := a.registry(ctx, args[0], openapiPath, store)
			if err != nil {
				return err
			}
			if err := migrate(ctx, store, registry); err != nil {
				return err
			}
			proto, err := lookupCollection(registry, args[1])
			if err != nil {
				return err
			}
			data, err := readPayload(args[2], cmd.InOrStdin())
			if err != nil {
				return err
			}
			parent, existing, err := rootRecord(ctx, store, registry, rootRef)
			if err != nil {
				return err
			}

			opts := []collection.Option{collection.WithLogger(a.log)}
			if existing {
				opts = append(opts, collection.WithInstance(parent))
			}

			preview := formset.Validate(ctx, proto, data, opts...)
			if !preview.Valid {
				if err := writeJSON(out, preview); err != nil {
					return err
				}
				return fmt.Errorf("cli: %s: %w", proto.Name(), formset.ErrNotValid)
			}
			if !yes {
				ok, err := a.confirmer.Confirm(ctx,
					fmt.Sprintf("Save %s to the %s store?", proto.Name(), a.cfg.Driver),
					"Records are created, updated and deleted to match the payload.")
				if err != nil {
					return err
				}
				if !ok {
					return ErrAborted
				}
			}

			result, err := formset.Reconcile(ctx, proto, data, store, parent, opts...)
			if err != nil {
				return fmt.Errorf("cli: %w", err)
			}
			a.log.Info("reconciled", zap.String("collection", proto.Name()), zap.Bool("valid", result.Valid))
			if err := writeJSON(out, result); err != nil {
				return err
			}
			if !result.Valid {
				return fmt.Errorf("%w: the store rejected part of the payload", errInvalid)
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&openapiPath, "openapi", "", "OpenAPI document contributing extra forms")
	flags.StringVar(&rootRef, "root", "", `record the collection edits, "model" or "model:pk"`)
	flags.BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func lookupCollection(registry *schema.Registry, name string) (*collection.FormCollection, error) {
	proto, ok := registry.Collection(name)
	if !ok {
		return nil, fmt.Errorf("%w: unknown collection %q (available: %s)", errUsage, name, strings.Join(registry.CollectionNames(), ", "))
	}
	return proto, nil
}
