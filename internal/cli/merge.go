package cli

import (
	"encoding/json"
	"fmt"

	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/dto"
	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/resources"
	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/services"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var mergeCmd = &cobra.Command{
	Use:   "merge --source <id> --target <id>",
	Short: "Merge one account into another",
	Long: `Merges the source account into the target account. Without --yes the
command only prints what would be combined.`,
	Args: cobra.NoArgs,
	RunE: runMerge,
}

var (
	mergeSource string
	mergeTarget string
	mergeYes    bool
)

func init() {
	rootCmd.AddCommand(mergeCmd)
	mergeCmd.Flags().StringVar(&mergeSource, "source", "", "Account that stops being a root")
	mergeCmd.Flags().StringVar(&mergeTarget, "target", "", "Account that survives")
	mergeCmd.Flags().BoolVarP(&mergeYes, "yes", "y", false, "Apply the merge instead of previewing it")
	mergeCmd.MarkFlagRequired("source")
	mergeCmd.MarkFlagRequired("target")
}

func runMerge(cmd *cobra.Command, args []string) error {
	source, err := uuid.Parse(mergeSource)
	if err != nil {
		return fmt.Errorf("invalid --source %q", mergeSource)
	}
	target, err := uuid.Parse(mergeTarget)
	if err != nil {
		return fmt.Errorf("invalid --target %q", mergeTarget)
	}

	rt, err := openRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.close()

	out, err := rt.engine.Accounts.AdminMerge(cmd.Context(), &dto.AdminMergeRequest{
		SourceUnifiedUserID: source,
		TargetUnifiedUserID: target,
		Confirmed:           mergeYes,
	})
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	switch out.Status {
	case services.MergePreviewOnly:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out.Preview); err != nil {
			return err
		}
		fmt.Fprintln(w, "re-run with --yes to apply")
	case services.MergeAlreadyApplied:
		fmt.Fprintf(w, "already merged: root %s\n", out.Result.Target)
	default:
		fmt.Fprintf(w, "merged %s into %s (%d identities, %d resources moved)\n",
			out.Result.Source, out.Result.Target, out.Result.MovedIdentities, resources.Total(out.Result.MovedResources))
	}
	return nil
}
