package cli

import (
	"context"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/DataMention-Intelligence/internal/bootstrap"
	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/storage/local"
	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/storage/minio"
	"github.com/turtacn/DataMention-Intelligence/pkg/errors"
)

// ModelEntry is one stored model artifact.
type ModelEntry struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
	Latest       bool      `json:"latest,omitempty"`
}

// ModelListOutput lists the artifacts of the configured model store.
type ModelListOutput struct {
	Models []ModelEntry `json:"models"`
}

func (o ModelListOutput) TableHeaders() []string {
	return []string{"KEY", "SIZE", "MODIFIED", "LATEST"}
}

func (o ModelListOutput) TableRows() [][]string {
	rows := make([][]string, 0, len(o.Models))
	for _, m := range o.Models {
		latest := ""
		if m.Latest {
			latest = "*"
		}
		rows = append(rows, []string{
			m.Key,
			strconv.FormatInt(m.Size, 10),
			m.LastModified.UTC().Format(time.RFC3339),
			latest,
		})
	}
	return rows
}

func newModelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Inspect stored co-occurrence models",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List model artifacts, marking the latest",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := cliCtx.operationContext(cmd)
			defer cancel()
			svc, release, err := cliCtx.Services(ctx)
			if err != nil {
				return err
			}
			defer release()

			out, err := listModels(ctx, svc.Models)
			if err != nil {
				return err
			}
			return PrintResult(cmd, out)
		},
	})
	return cmd
}

func listModels(ctx context.Context, store bootstrap.ModelStore) (ModelListOutput, error) {
	var (
		out    ModelListOutput
		latest string
		err    error
	)
	switch s := store.(type) {
	case *minio.ModelStore:
		var infos []minio.ModelInfo
		if infos, err = s.List(ctx); err != nil {
			return out, err
		}
		for _, i := range infos {
			out.Models = append(out.Models, ModelEntry{Key: i.Key, Size: i.Size, LastModified: i.LastModified})
		}
		latest, err = s.LatestKey(ctx)
	case *local.ModelStore:
		var infos []local.ModelInfo
		if infos, err = s.List(ctx); err != nil {
			return out, err
		}
		for _, i := range infos {
			out.Models = append(out.Models, ModelEntry{Key: i.Key, Size: i.Size, LastModified: i.LastModified})
		}
		latest, err = s.LatestKey(ctx)
	default:
		return out, errors.NewInvalidInput("model store does not support listing")
	}
	if err != nil && !errors.IsCode(err, errors.ErrCodeModelNotFound) {
		return out, err
	}
	for i := range out.Models {
		out.Models[i].Latest = latest != "" && out.Models[i].Key == latest
	}
	return out, nil
}
