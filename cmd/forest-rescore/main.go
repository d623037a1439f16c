package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/golang/glog"
	"github.com/urfave/cli/v2"

	"github.com/cognicore/forestbleu/internal/forestio"
	"github.com/cognicore/forestbleu/pkg/forestbleu/config"
	"github.com/cognicore/forestbleu/pkg/forestbleu/metric"
	"github.com/cognicore/forestbleu/pkg/forestbleu/rescore"
	"github.com/cognicore/forestbleu/pkg/forestbleu/store"
	"github.com/cognicore/forestbleu/pkg/forestbleu/store/sqlite"
	"github.com/cognicore/forestbleu/pkg/forestbleu/vocab"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		glog.Exitf("forest-rescore: %v", err)
	}
}

func newApp() *cli.App {
	searchFlags := []cli.Flag{
		&cli.StringFlag{Name: "forests", Aliases: []string{"f"}, Usage: "JSONL file with one forest per line", Required: true},
		&cli.Float64Flag{Name: "bleu-weight", Usage: "override bleu_weight from the config"},
		&cli.IntFlag{Name: "workers", Aliases: []string{"j"}, Usage: "override workers from the config"},
		&cli.StringFlag{Name: "store", Usage: "override store from the config (sqlite path)"},
		&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "write JSONL results here instead of stdout"},
	}
	return &cli.App{
		Name:  "forest-rescore",
		Usage: "BLEU-aware Viterbi search over translation forests",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML config file", Value: "forestbleu.yaml"},
			&cli.StringSliceFlag{Name: "ref", Aliases: []string{"r"}, Usage: "reference file (repeatable, overrides config)"},
			&cli.IntFlag{Name: "v", Usage: "glog verbosity"},
		},
		Before: func(c *cli.Context) error {
			// glog reads its settings from the standard flag set
			if err := flag.CommandLine.Parse(nil); err != nil {
				return err
			}
			if err := flag.Set("logtostderr", "true"); err != nil {
				return err
			}
			return flag.Set("v", strconv.Itoa(c.Int("v")))
		},
		After: func(c *cli.Context) error {
			glog.Flush()
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "viterbi",
				Usage:  "best whole-sentence derivation per forest",
				Flags:  searchFlags,
				Action: func(c *cli.Context) error { return runSearch(c, rescore.ModeViterbi) },
			},
			{
				Name:   "spans",
				Usage:  "best derivation per source span, spliced into its outside context",
				Flags:  searchFlags,
				Action: func(c *cli.Context) error { return runSearch(c, rescore.ModeSpans) },
			},
			{
				Name:   "refstats",
				Usage:  "print per-sentence reference length and n-gram types",
				Action: refStats,
			},
		},
	}
}

func loadComponents(c *cli.Context) (*config.Components, error) {
	loader := config.Loader{
		Override: func(cfg *config.Config) {
			if refs := c.StringSlice("ref"); len(refs) > 0 {
				cfg.References = refs
			}
			if c.IsSet("bleu-weight") {
				cfg.BleuWeight = c.Float64("bleu-weight")
			}
			if c.IsSet("workers") {
				cfg.Workers = c.Int("workers")
			}
			if c.IsSet("store") {
				cfg.Store = c.String("store")
			}
		},
	}
	if path := c.String("config"); path != "" {
		if _, err := os.Stat(path); err == nil || c.IsSet("config") {
			loader.ConfigPath = path
		}
	}
	return loader.Load(c.Context)
}

type sentenceOutput struct {
	Sentence     int                `json:"sentence"`
	Span         []int              `json:"span,omitempty"`
	Text         string             `json:"text"`
	Features     map[string]float64 `json:"features"`
	ModelScore   float64            `json:"model_score"`
	BleuStats    []float64          `json:"bleu_stats"`
	BleuStatsPot []float64          `json:"bleu_stats_pot,omitempty"`
}

func runSearch(c *cli.Context, mode rescore.Mode) error {
	ctx := c.Context
	comp, err := loadComponents(c)
	if err != nil {
		return err
	}
	sentences, err := forestio.LoadJSONL(c.String("forests"), comp.Vocab)
	if err != nil {
		return err
	}
	comp.Vocab.Freeze()

	runner := &rescore.Runner{
		Vocab:      comp.Vocab,
		References: comp.References,
		Weights:    comp.Weights,
		Options:    comp.Config.SearchOptions(),
		Mode:       mode,
		Workers:    comp.Config.Workers,
	}
	if comp.Config.Store != "" {
		st, err := sqlite.OpenSQLite(ctx, comp.Config.Store)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()
		run, err := st.CreateRun(ctx, store.RunInfo{
			BleuWeight: comp.Config.BleuWeight,
			Order:      comp.Config.Order,
			Weights:    comp.Weights,
		})
		if err != nil {
			return fmt.Errorf("create run: %w", err)
		}
		glog.Infof("storing results in %s under run %s", comp.Config.Store, run.ID)
		runner.Store, runner.RunID = st, run.ID
	}

	jobs := make([]rescore.Job, len(sentences))
	for i, s := range sentences {
		jobs[i] = rescore.Job{SentenceID: s.ID, Graph: s.Graph}
	}
	results, err := runner.Run(ctx, jobs)
	if err != nil {
		return err
	}

	w := c.App.Writer
	if path := c.String("out"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	var corpus [][]float64
	for _, res := range results {
		for _, out := range outputs(res, comp.Vocab) {
			if err := enc.Encode(out); err != nil {
				return err
			}
		}
		if res.Best != nil {
			corpus = append(corpus, res.Best.BleuStats)
		}
	}
	if mode == rescore.ModeViterbi {
		glog.Infof("%s over %d sentences: %.4f", comp.Metric.Name(), len(corpus), metric.Corpus(comp.Metric, corpus))
	}
	return nil
}

func outputs(res rescore.Result, voc *vocab.Vocab) []sentenceOutput {
	if res.Best != nil {
		return []sentenceOutput{{
			Sentence:   res.SentenceID,
			Text:       strings.Join(voc.Strings(res.Best.Text), " "),
			Features:   res.Best.Features,
			ModelScore: res.Best.ModelScore,
			BleuStats:  res.Best.BleuStats,
		}}
	}
	var out []sentenceOutput
	for _, span := range res.Spans.Spans() {
		h := res.Spans.Hypotheses[span]
		out = append(out, sentenceOutput{
			Sentence:     res.SentenceID,
			Span:         []int{span.Start, span.End},
			Text:         strings.Join(voc.Strings(h.Text), " "),
			Features:     h.Features,
			ModelScore:   h.ModelScore,
			BleuStats:    h.BleuStats,
			BleuStatsPot: h.BleuStatsPot,
		})
	}
	return out
}

func refStats(c *cli.Context) error {
	comp, err := loadComponents(c)
	if err != nil {
		return err
	}
	refs := comp.References
	for id := 0; id < refs.Len(); id++ {
		length, ok := refs.Length(id)
		if !ok {
			continue
		}
		fmt.Fprintf(c.App.Writer, "%d\t%d\t%d\n", id, length, refs.NgramTypes(id))
	}
	return nil
}
