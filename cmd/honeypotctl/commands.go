package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"honeypot/internal/config"
	"honeypot/internal/extract"
	"honeypot/internal/models"
	"honeypot/internal/scoring"
)

type options struct {
	configPath  string
	lexiconPath string
	threshold   float64
}

// toolkit is the analysis stack built from config for one invocation.
type toolkit struct {
	lexicon   *scoring.Lexicon
	extractor *extract.Extractor
	scorer    *scoring.Scorer
}

func (o *options) load() (*toolkit, error) {
	cfg, err := config.Read(o.configPath)
	if err != nil {
		return nil, err
	}
	path := cfg.Scoring.LexiconPath
	if o.lexiconPath != "" {
		path = o.lexiconPath
	}
	lex := scoring.DefaultLexicon()
	if path != "" {
		if lex, err = scoring.LoadLexicon(path); err != nil {
			return nil, fmt.Errorf("load lexicon: %w", err)
		}
	}
	threshold := cfg.Engagement.ScamThreshold
	if o.threshold > 0 {
		threshold = o.threshold
	}
	ex := extract.New(extract.Options{
		CountryCode:    cfg.Extraction.CountryCode,
		NationalLength: cfg.Extraction.NationalLength,
		LeadingDigits:  cfg.Extraction.LeadingDigits,
		UPIHandles:     cfg.Extraction.UPIHandles,
		Shorteners:     lex.Shorteners,
	})
	return &toolkit{lexicon: lex, extractor: ex, scorer: scoring.New(lex, ex, threshold)}, nil
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "honeypotctl",
		Short:         "Offline scam scoring and intelligence extraction",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to the server config file")
	root.PersistentFlags().StringVar(&opts.lexiconPath, "lexicon", "", "YAML lexicon overriding the configured one")
	root.PersistentFlags().Float64Var(&opts.threshold, "threshold", 0, "scam threshold overriding the configured one")

	root.AddCommand(newScoreCommand(opts), newExtractCommand(opts), newLexiconCommand(opts))
	return root
}

type messageScore struct {
	Text    string   `json:"text"`
	Score   float64  `json:"score"`
	Signals []string `json:"signals"`
}

type scoreReport struct {
	models.Assessment
	Threshold float64        `json:"threshold"`
	Messages  []messageScore `json:"messages"`
}

func newScoreCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "score [message...]",
		Short: "Score a conversation; one message per argument or stdin line",
		RunE: func(cmd *cobra.Command, args []string) error {
			kit, err := opts.load()
			if err != nil {
				return err
			}
			texts, err := inputTexts(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			history := make([]models.Message, 0, len(texts))
			report := scoreReport{
				Threshold: kit.scorer.Threshold(),
				Messages:  make([]messageScore, 0, len(texts)),
			}
			start := time.Now().UTC()
			for i, text := range texts {
				history = append(history, models.Message{
					Sender:    models.SenderScammer,
					Text:      text,
					Timestamp: start.Add(time.Duration(i) * time.Second),
				})
				ts := kit.scorer.ScoreText(text)
				report.Messages = append(report.Messages, messageScore{Text: text, Score: ts.Score, Signals: ts.Signals})
			}
			report.Assessment = kit.scorer.Score(history)
			return writeJSON(cmd.OutOrStdout(), report)
		},
	}
}

func newExtractCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "extract [message...]",
		Short: "Extract intelligence; one message per argument or stdin line",
		RunE: func(cmd *cobra.Command, args []string) error {
			kit, err := opts.load()
			if err != nil {
				return err
			}
			texts, err := inputTexts(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), kit.extractor.ExtractAll(texts...).Wire())
		},
	}
}

func newLexiconCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "lexicon",
		Short: "Print the effective lexicon as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			kit, err := opts.load()
			if err != nil {
				return err
			}
			out, err := kit.lexicon.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

func inputTexts(in io.Reader, args []string) ([]string, error) {
	var texts []string
	if len(args) > 0 {
		for _, a := range args {
			if a = strings.TrimSpace(a); a != "" {
				texts = append(texts, a)
			}
		}
	} else {
		sc := bufio.NewScanner(in)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			if line := strings.TrimSpace(sc.Text()); line != "" {
				texts = append(texts, line)
			}
		}
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
	}
	if len(texts) == 0 {
		return nil, fmt.Errorf("no messages given")
	}
	return texts, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
