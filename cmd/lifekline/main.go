package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zorojean/lifekline/internal/analyze"
	"github.com/zorojean/lifekline/internal/app"
	"github.com/zorojean/lifekline/internal/apperr"
	"github.com/zorojean/lifekline/internal/config"
	"github.com/zorojean/lifekline/internal/render"
	"github.com/zorojean/lifekline/models"
)

var (
	inputPath  string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:           "lifekline",
	Short:         "Life trajectory reports from a four pillars chart",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Generate a full report through the configured model",
	RunE:  runAnalyze,
}

var timelineCmd = &cobra.Command{
	Use:   "timeline",
	Short: "Print the Da Yun bands and the per-age pillars without calling the model",
	RunE:  runTimeline,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&inputPath, "input", "i", "-", "subject JSON file, - for stdin")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print JSON instead of text")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(timelineCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误[%s]：%v\n", apperr.Kind(err), err)
		os.Exit(1)
	}
}

func readInput(cmd *cobra.Command) (models.AnalysisInput, error) {
	var r io.Reader = cmd.InOrStdin()
	if inputPath != "-" {
		f, err := os.Open(inputPath)
		if err != nil {
			return models.AnalysisInput{}, err
		}
		defer f.Close()
		r = f
	}

	var in models.AnalysisInput
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return models.AnalysisInput{}, fmt.Errorf("read subject: %w", err)
	}
	return in, nil
}

func runTimeline(cmd *cobra.Command, args []string) error {
	in, err := readInput(cmd)
	if err != nil {
		return err
	}
	preview, err := analyze.BuildPreview(in)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return writeJSON(out, preview)
	}
	fmt.Fprint(out, render.Header(preview.Subject))
	fmt.Fprintln(out)
	fmt.Fprint(out, render.BandTable(preview.Bands))
	fmt.Fprintln(out)
	fmt.Fprint(out, render.Timeline(preview.Timeline))
	return nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	in, err := readInput(cmd)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	app.SetupLogger(cfg.LogLevel)

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	log.Info().Str("model", a.Service.Settings(in.API).Model).Msg("Generating report")
	rep, err := a.Service.Analyze(context.Background(), in)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return writeJSON(out, rep)
	}
	fmt.Fprint(out, render.Report(rep))
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
