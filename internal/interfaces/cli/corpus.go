package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/corpus"
	"github.com/turtacn/DataMention-Intelligence/pkg/errors"
)

// CorpusSummary describes a loaded corpus file.
type CorpusSummary struct {
	Path         string   `json:"path"`
	Publications int      `json:"publications"`
	Datasets     int      `json:"datasets"`
	Citations    int      `json:"citations"`
	WithText     int      `json:"with_text,omitempty"`
	Missing      []string `json:"missing,omitempty"`
}

func (s CorpusSummary) TableHeaders() []string {
	return []string{"PUBLICATIONS", "DATASETS", "CITATIONS", "WITH_TEXT", "MISSING_TEXT"}
}

func (s CorpusSummary) TableRows() [][]string {
	return [][]string{{
		strconv.Itoa(s.Publications), strconv.Itoa(s.Datasets), strconv.Itoa(s.Citations),
		strconv.Itoa(s.WithText), strconv.Itoa(len(s.Missing)),
	}}
}

func (s CorpusSummary) String() string {
	out := fmt.Sprintf("%s: %d publications, %d datasets, %d citations",
		s.Path, s.Publications, s.Datasets, s.Citations)
	if s.WithText > 0 || len(s.Missing) > 0 {
		out += fmt.Sprintf("\n%d publications with text, %d without", s.WithText, len(s.Missing))
	}
	return out
}

// ConvertOutput reports a PDF conversion pass.
type ConvertOutput struct {
	*corpus.ConvertResult
	TextDir string `json:"text_dir"`
}

func (o ConvertOutput) String() string {
	return fmt.Sprintf("converted %d, skipped %d, failed %d into %s",
		o.Converted, o.Skipped, len(o.Failed), o.TextDir)
}

// DownloadOutput reports a resource download pass.
type DownloadOutput struct {
	*corpus.DownloadResult
	PDFDir  string `json:"pdf_dir"`
	HTMLDir string `json:"html_dir"`
}

func (o DownloadOutput) String() string {
	return fmt.Sprintf("downloaded %d, skipped %d, failed %d into %s and %s",
		o.Downloaded, o.Skipped, len(o.Failed), o.PDFDir, o.HTMLDir)
}

// CopyOutput reports a PDF copy pass.
type CopyOutput struct {
	*corpus.CopyResult
	PDFDir string `json:"pdf_dir"`
}

func (o CopyOutput) String() string {
	return fmt.Sprintf("copied %d, skipped %d into %s", o.Copied, o.Skipped, o.PDFDir)
}

// CacheOutput describes the consolidated corpus cache.
type CacheOutput struct {
	Path         string `json:"path"`
	Cached       bool   `json:"cached"`
	Publications int    `json:"publications"`
	Datasets     int    `json:"datasets"`
	WithText     int    `json:"with_text"`
	WithPage     int    `json:"with_page"`
}

func (o CacheOutput) String() string {
	state := "rebuilt"
	if o.Cached {
		state = "loaded"
	}
	return fmt.Sprintf("%s %s: %d publications (%d with text), %d datasets (%d with page)",
		state, o.Path, o.Publications, o.WithText, o.Datasets, o.WithPage)
}

func newCorpusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "corpus",
		Short: "Inspect and prepare the annotated corpus",
	}
	cmd.AddCommand(
		newCorpusLoadCmd(),
		newCorpusDownloadCmd(),
		newCorpusCopyCmd(),
		newCorpusConvertCmd(),
		newCorpusCacheCmd(),
		newCorpusMetaCmd(),
	)
	return cmd
}

func corpusPathArg(cliCtx *CLIContext, args []string) (string, error) {
	path := cliCtx.Config.Corpus.Path
	if len(args) == 1 {
		path = args[0]
	}
	if path == "" {
		return "", errors.NewInvalidInput("corpus path is required")
	}
	return path, nil
}

func newCorpusLoadCmd() *cobra.Command {
	var textDir string

	cmd := &cobra.Command{
		Use:   "load [corpus-file]",
		Short: "Validate a corpus file and count its entities",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			path, err := corpusPathArg(cliCtx, args)
			if err != nil {
				return err
			}
			c, err := corpus.LoadCorpusFile(path)
			if err != nil {
				return err
			}
			summary := CorpusSummary{Path: path, Publications: len(c.Publications), Datasets: len(c.Datasets)}
			for _, p := range c.Publications {
				summary.Citations += len(p.DatasetIDs)
			}
			if textDir != "" {
				labeled, missing, err := c.Labeled(textDir)
				if err != nil {
					return err
				}
				summary.WithText = len(labeled)
				summary.Missing = missing
			}
			return PrintResult(cmd, summary)
		},
	}
	cmd.Flags().StringVar(&textDir, "text-dir", "", "also check for <publication-id>.txt files here")
	return cmd
}

func newCorpusDownloadCmd() *cobra.Command {
	var (
		pdfDir  string
		htmlDir string
		force   bool
	)

	cmd := &cobra.Command{
		Use:   "download [corpus-file]",
		Short: "Download publication PDFs and dataset landing pages",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			path, err := corpusPathArg(cliCtx, args)
			if err != nil {
				return err
			}
			if pdfDir == "" {
				pdfDir = cliCtx.Config.Corpus.PDFDir
			}
			if htmlDir == "" {
				htmlDir = cliCtx.Config.Corpus.HTMLDir
			}
			if pdfDir == "" || htmlDir == "" {
				return errors.NewInvalidInput("--pdf-dir and --html-dir are required")
			}
			c, err := corpus.LoadCorpusFile(path)
			if err != nil {
				return err
			}
			ctx, cancel := cliCtx.operationContext(cmd)
			defer cancel()

			fetcher := corpus.NewFetcher(cliCtx.Config.Corpus.Download, cliCtx.Logger)
			res, err := fetcher.DownloadResources(ctx, c, pdfDir, htmlDir, force)
			if err != nil {
				return err
			}
			return PrintResult(cmd, DownloadOutput{DownloadResult: res, PDFDir: pdfDir, HTMLDir: htmlDir})
		},
	}
	cmd.Flags().StringVar(&pdfDir, "pdf-dir", "", "publication PDF directory (default: corpus.pdf_dir)")
	cmd.Flags().StringVar(&htmlDir, "html-dir", "", "dataset landing page directory (default: corpus.html_dir)")
	cmd.Flags().BoolVar(&force, "force", false, "download again over existing files")
	return cmd
}

func newCorpusCopyCmd() *cobra.Command {
	var pdfDir string

	cmd := &cobra.Command{
		Use:   "copy <src-dir>",
		Short: "Copy manually fetched PDFs into the publication PDF directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			if pdfDir == "" {
				pdfDir = cliCtx.Config.Corpus.PDFDir
			}
			if pdfDir == "" {
				return errors.NewInvalidInput("--pdf-dir is required")
			}
			res, err := corpus.CopyPDFs(args[0], pdfDir)
			if err != nil {
				return err
			}
			return PrintResult(cmd, CopyOutput{CopyResult: res, PDFDir: pdfDir})
		},
	}
	cmd.Flags().StringVar(&pdfDir, "pdf-dir", "", "destination directory (default: corpus.pdf_dir)")
	return cmd
}

func newCorpusCacheCmd() *cobra.Command {
	var (
		htmlDir string
		textDir string
		force   bool
	)

	cmd := &cobra.Command{
		Use:   "cache [corpus-file]",
		Short: "Build or load the consolidated corpus cache",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			path, err := corpusPathArg(cliCtx, args)
			if err != nil {
				return err
			}
			if htmlDir == "" {
				htmlDir = cliCtx.Config.Corpus.HTMLDir
			}
			if textDir == "" {
				textDir = cliCtx.Config.Corpus.TextDir
			}
			opts := corpus.ConsolidateOptions{
				HTMLDir:   htmlDir,
				TextDir:   textDir,
				CacheFile: cliCtx.Config.Corpus.CacheFile,
				Force:     force,
			}
			out, cached, err := corpus.LoadConsolidated(path, opts, cliCtx.Logger)
			if err != nil {
				return err
			}
			summary := CacheOutput{
				Path:         corpus.CachePath(path, opts.CacheFile),
				Cached:       cached,
				Publications: len(out.Publications),
				Datasets:     len(out.Datasets),
			}
			for _, p := range out.Publications {
				if p.Text != "" {
					summary.WithText++
				}
			}
			for _, d := range out.Datasets {
				if d.Meta != nil {
					summary.WithPage++
				}
			}
			return PrintResult(cmd, summary)
		},
	}
	cmd.Flags().StringVar(&htmlDir, "html-dir", "", "dataset landing page directory (default: corpus.html_dir)")
	cmd.Flags().StringVar(&textDir, "text-dir", "", "publication text directory (default: corpus.text_dir)")
	cmd.Flags().BoolVar(&force, "force", false, "rebuild even when the cache exists")
	return cmd
}

func newCorpusConvertCmd() *cobra.Command {
	var (
		pdfDir  string
		textDir string
		force   bool
	)

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert publication PDFs to text files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			if pdfDir == "" {
				pdfDir = cliCtx.Config.Corpus.PDFDir
			}
			if textDir == "" {
				textDir = cliCtx.Config.Corpus.TextDir
			}
			if pdfDir == "" || textDir == "" {
				return errors.NewInvalidInput("--pdf-dir and --text-dir are required")
			}
			ctx, cancel := cliCtx.operationContext(cmd)
			defer cancel()

			res, err := corpus.NewConverter(cliCtx.Logger).ConvertDir(ctx, pdfDir, textDir, force)
			if err != nil {
				return err
			}
			return PrintResult(cmd, ConvertOutput{ConvertResult: res, TextDir: textDir})
		},
	}
	cmd.Flags().StringVar(&pdfDir, "pdf-dir", "", "directory of publication PDFs (default: corpus.pdf_dir)")
	cmd.Flags().StringVar(&textDir, "text-dir", "", "output directory (default: corpus.text_dir)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing text files")
	return cmd
}

func newCorpusMetaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "meta <html-file>",
		Short: "Extract the title and description of a dataset landing page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeInvalidInput, "open landing page").WithDetail(args[0])
			}
			defer f.Close()

			meta, err := corpus.ExtractMeta(f)
			if err != nil {
				return err
			}
			return PrintResult(cmd, meta)
		},
	}
}
