package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/crimson-sun/kartavya/internal/config"
	"github.com/crimson-sun/kartavya/pkg/kartavya"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <image>",
	Short: "Rate the severity of a photo",
	Long: `Run a photo through the configured ONNX model and print the severity
analysis as JSON. Model paths come from KARTAVYA_MODEL_PATH and
KARTAVYA_LABELS_PATH.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

var classifyCmd = &cobra.Command{
	Use:   "classify [label:probability ...]",
	Short: "Rate predictions from an external classifier",
	Long: `Rate a prediction list without loading a model. Predictions are given
as label:probability arguments, highest first, or as a JSON array of
{"label","probability"} objects on stdin when no arguments are given.`,
	Example: `  kartavya classify "fire:0.8" "smoke:0.1"
  echo '[{"label":"pothole","probability":0.9}]' | kartavya classify`,
	RunE: runClassify,
}

func init() {
	for _, c := range []*cobra.Command{analyzeCmd, classifyCmd} {
		c.Flags().Bool("pretty", false, "indent JSON output")
	}
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	opts := []kartavya.Option{
		kartavya.WithModelPaths(cfg.Vision.ModelPath, cfg.Vision.LabelsPath),
		kartavya.WithInputSize(cfg.Vision.InputSize),
		kartavya.WithTopK(cfg.Vision.TopK),
	}
	if !cfg.Vision.ApplySoftmax {
		opts = append(opts, kartavya.WithoutSoftmax())
	}
	k, err := kartavya.New(opts...)
	if err != nil {
		return err
	}
	defer k.Close()

	return printJSON(cmd, k.Analyze(cmd.Context(), data))
}

func runClassify(cmd *cobra.Command, args []string) error {
	var (
		preds []kartavya.Prediction
		err   error
	)
	if len(args) == 0 {
		preds, err = readPredictions(cmd.InOrStdin())
	} else {
		preds, err = parsePredictions(args)
	}
	if err != nil {
		return err
	}

	a, err := kartavya.Classify(preds)
	if err != nil {
		return err
	}
	return printJSON(cmd, a)
}

// parsePredictions parses label:probability pairs. The label may itself
// contain colons; the probability follows the last one.
func parsePredictions(args []string) ([]kartavya.Prediction, error) {
	preds := make([]kartavya.Prediction, 0, len(args))
	for _, arg := range args {
		i := strings.LastIndex(arg, ":")
		if i <= 0 {
			return nil, fmt.Errorf("prediction %q: want label:probability", arg)
		}
		p, err := strconv.ParseFloat(arg[i+1:], 64)
		if err != nil || p < 0 || p > 1 {
			return nil, fmt.Errorf("prediction %q: probability must be a number in [0,1]", arg)
		}
		preds = append(preds, kartavya.Prediction{Label: arg[:i], Probability: p})
	}
	return preds, nil
}

func readPredictions(r io.Reader) ([]kartavya.Prediction, error) {
	var preds []kartavya.Prediction
	if err := json.NewDecoder(r).Decode(&preds); err != nil {
		return nil, fmt.Errorf("decode predictions: %w", err)
	}
	return preds, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	if pretty, _ := cmd.Flags().GetBool("pretty"); pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
