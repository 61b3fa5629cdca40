package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/stipend/core"
	"github.com/trezcool/stipend/core/assignment"
	"github.com/trezcool/stipend/core/ingest"
)

func (cli *commandLine) uploadCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "upload <file.csv|file.xlsx>",
		Short: "Upload assignments from a 5-field template or a legacy spreadsheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return errors.Wrap(err, "opening upload")
			}
			defer func() { _ = f.Close() }()

			src, err := ingest.SourceFor(filepath.Base(args[0]), f)
			if err != nil {
				return err
			}

			if dryRun {
				batch, err := cli.pipeline.Parse(cmd.Context(), src)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d records valid (%s).\n", len(batch.Assignments), batch.Format)
				return nil
			}

			res, err := cli.pipeline.Upload(cmd.Context(), src)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d records uploaded successfully.\n", res.Committed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate and value the rows without persisting them")
	return cmd
}

// create opens `path` for writing, or returns stdout when it is empty or "-".
func (cli *commandLine) create(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{cli.out}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "creating %s", path)
	}
	return f, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func (cli *commandLine) templateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "template [out.csv]",
		Short: "Write the 5-field upload template (stdout by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			path := ""
			if len(args) > 0 {
				path = args[0]
			}
			w, err := cli.create(path)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := w.Close(); err == nil {
					err = cerr
				}
			}()
			return ingest.WriteTemplate(w)
		},
	}
}

func (cli *commandLine) exportCmd() *cobra.Command {
	var (
		filter   assignment.QueryFilter
		ordering string
	)

	cmd := &cobra.Command{
		Use:   "export <out.xlsx>",
		Short: "Export assignments as an XLSX workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			filter.Clean()
			asgs, err := cli.asgSvc.Query(cmd.Context(), &filter, core.ParseOrdering(ordering))
			if err != nil {
				return err
			}

			w, err := cli.create(args[0])
			if err != nil {
				return err
			}
			defer func() {
				if cerr := w.Close(); err == nil {
					err = cerr
				}
			}()
			if err = ingest.WriteWorkbook(w, asgs); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d assignments exported.\n", len(asgs))
			return nil
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&filter.StudentID, "student-id", 0, "only this student's assignments")
	flags.StringVar(&filter.Term, "term", "", "only this term")
	flags.StringVar(&filter.ClassNum, "class-num", "", "only this class")
	flags.StringVar(&filter.Position, "position", "", "only this position")
	flags.IntVar(&filter.InstructorID, "instructor-id", 0, "only this instructor's classes")
	flags.BoolVar(&filter.IncludeHistory, "history", false, "include edited and deleted records")
	flags.StringVar(&ordering, "ordering", "", "comma separated fields, prefixed with - for descending (e.g. -id)")
	return cmd
}
