package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"hydrogen_tea/pkg/core/analysis"
	"hydrogen_tea/pkg/core/config"
	"hydrogen_tea/pkg/core/logging"
	"hydrogen_tea/pkg/core/params"
	"hydrogen_tea/pkg/core/scenario"
	"hydrogen_tea/pkg/core/store"
)

// overrideFlags collects repeated -set Table > Row > Field=value flags.
type overrideFlags []params.Override

func (o *overrideFlags) String() string { return fmt.Sprint(len(*o)) }

func (o *overrideFlags) Set(s string) error {
	spec, val, ok := strings.Cut(s, "=")
	if !ok {
		return fmt.Errorf("override %q must look like Table > Row > Field=value", s)
	}
	mode := params.ModeValue
	if strings.HasSuffix(spec, "*") {
		spec, mode = strings.TrimSuffix(spec, "*"), params.ModeFactor
	}
	p, err := params.ParsePath(spec)
	if err != nil {
		return err
	}
	*o = append(*o, params.Override{Path: p, Value: params.ParseLiteral(val), Mode: mode})
	return nil
}

// modelUsage matches the formats ingest.FormatOf accepts.
const modelUsage = "Model file (markdown .md or HTML .html)"

func main() {
	model := flag.String("model", "", modelUsage)
	defaults := flag.String("defaults", "", "Optional defaults file filling gaps in the model")
	analysisFile := flag.String("analysis", "", "Optional analysis declaration (yaml, hjson or json)")
	kind := flag.String("kind", scenario.KindEvaluate, "Analysis: "+strings.Join(scenario.Kinds, ", ")+" or all")
	out := flag.String("out", "", "Write the JSON result here instead of stdout")
	save := flag.Bool("save", false, "Store the run in the results repository")
	cfgPath := flag.String("config", config.DefaultPath, "Engine settings file")
	var overrides overrideFlags
	flag.Var(&overrides, "set", "Override, Table > Row > Field=value (append * to the path to multiply); repeatable")
	flag.Parse()

	if *model == "" {
		fmt.Println("Error: No model provided")
		flag.Usage()
		os.Exit(2)
	}

	godotenv.Load()
	settings, err := config.Load(*cfgPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Printf("Error loading settings: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	rt, err := config.Bootstrap(ctx, settings, nil)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer rt.Close()

	if err := run(ctx, rt, *model, *defaults, *analysisFile, *kind, overrides, *out, *save); err != nil {
		logging.Error("tea", "analysis failed", err, "model", *model, "kind", *kind)
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, rt *config.Runtime, model, defaults, analysisFile, kind string, overrides []params.Override, out string, save bool) error {
	// 1. Load the model and its declared analyses
	m, cfg, err := rt.Engine.LoadModel(ctx, model, defaults)
	if err != nil {
		return err
	}
	if analysisFile != "" {
		extra, err := analysis.LoadFile(analysisFile)
		if err != nil {
			return err
		}
		extra.Merge(cfg)
		cfg = extra
	}

	kinds := []string{kind}
	if kind == "all" {
		kinds = declared(cfg)
	}

	// 2. Run each analysis
	results := make(map[string]interface{}, len(kinds))
	var timedOut error
	for _, k := range kinds {
		start := time.Now()
		res, err := rt.Engine.Run(ctx, scenario.Request{
			Kind:      k,
			Model:     m,
			Config:    cfg,
			Overrides: overrides,
			ModelPath: model,
			Defaults:  defaults,
		})
		switch {
		case errors.Is(err, scenario.ErrBatchTimeout):
			timedOut = err
		case err != nil:
			return fmt.Errorf("%s: %w", k, err)
		}
		results[k] = res

		if save {
			r, err := store.NewRun(k, m.Name, start, res)
			if err != nil {
				return err
			}
			if err := rt.Repo.SaveRun(ctx, r); err != nil {
				return fmt.Errorf("failed to save %s run: %w", k, err)
			}
			logging.Info("tea", "run saved", "run", r.ID, "kind", k)
		}
	}

	// 3. Report
	var payload interface{} = results
	if len(kinds) == 1 {
		payload = results[kinds[0]]
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	if out == "" {
		fmt.Println(string(data))
	} else if err := os.WriteFile(out, append(data, '\n'), 0o644); err != nil {
		return err
	}
	return timedOut
}

// declared lists evaluate plus every analysis the configuration declares.
func declared(cfg *analysis.Config) []string {
	kinds := []string{scenario.KindEvaluate}
	if cfg.MonteCarlo != nil {
		kinds = append(kinds, scenario.KindMonteCarlo)
	}
	if len(cfg.Sensitivity) > 0 {
		kinds = append(kinds, scenario.KindSensitivity)
	}
	if len(cfg.Waterfall) > 0 {
		kinds = append(kinds, scenario.KindWaterfall)
	}
	if len(cfg.Comparative) > 0 {
		kinds = append(kinds, scenario.KindComparative)
	}
	return kinds
}
