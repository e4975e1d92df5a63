package main

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/classifier-cli/internal/model"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <company_key>",
	Short: "Classify one company and print the result as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		companyKey := args[0]

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		out, err := env.Manager.Request(ctx, companyKey)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return eris.Errorf("no extracted documents for company %q (check extraction.data_dir)", companyKey)
			}
			return err
		}

		if out.Status != model.StatusReady {
			env.Manager.Wait()
			if out, _, err = env.Manager.Result(ctx, companyKey); err != nil {
				return err
			}
		}

		if out.Status == model.StatusError {
			return eris.Errorf("classification failed: %s", out.Error)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out.Result)
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}
