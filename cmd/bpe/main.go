package main

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/amosdevstudio/bpe"
	"github.com/amosdevstudio/bpe/internal/logutil"
)

const defaultModelPath = "tokenizer.bpe"

func main() {
	if err := newCLI().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "bpe",
		Short:         "Train and use byte pair encoding tokenizers",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			slog.SetDefault(logutil.NewLogger(os.Stderr, logutil.LevelFromEnv()))
		},
	}

	fitCmd := &cobra.Command{
		Use:   "fit",
		Short: "Train a tokenizer on a corpus and write " + defaultModelPath,
		Args:  cobra.NoArgs,
		RunE:  runFit,
	}
	fitCmd.Flags().String("regex", "", "chunk with a regex pattern instead of split letters")
	fitCmd.Flags().String("split-letters", "", "bytes that start a new chunk")
	fitCmd.Flags().String("corpus", "", "path to the training text")
	fitCmd.Flags().Int("vocab-size", 0, "target vocabulary size (minimum 256)")
	fitCmd.Flags().Int("workers", 0, "worker count (0 = all CPUs)")
	fitCmd.Flags().Bool("bulk", false, "use the recounting trainer instead of the incremental heap")
	fitCmd.Flags().String("output", defaultModelPath, "where to write the trained model")
	fitCmd.Flags().BoolP("yes", "y", false, "skip the confirmation prompt")

	encodeCmd := &cobra.Command{
		Use:   "encode",
		Short: "Interactively encode lines with a trained model",
		Args:  cobra.NoArgs,
		RunE:  runEncode,
	}
	encodeCmd.Flags().String("model", defaultModelPath, "model file to load")

	rootCmd.AddCommand(fitCmd, encodeCmd)
	return rootCmd
}

func runFit(cmd *cobra.Command, _ []string) error {
	in := bufio.NewReader(cmd.InOrStdin())

	pattern, _ := cmd.Flags().GetString("regex")
	splitLetters, _ := cmd.Flags().GetString("split-letters")
	corpus, _ := cmd.Flags().GetString("corpus")
	vocabSize, _ := cmd.Flags().GetInt("vocab-size")
	workers, _ := cmd.Flags().GetInt("workers")
	bulk, _ := cmd.Flags().GetBool("bulk")
	output, _ := cmd.Flags().GetString("output")
	yes, _ := cmd.Flags().GetBool("yes")

	var err error
	if pattern == "" && !cmd.Flags().Changed("split-letters") {
		splitLetters, err = prompt(in, "Type in (or paste in) the letters used to split the words:")
		if err != nil {
			return err
		}
	}
	if corpus == "" {
		if corpus, err = prompt(in, "Type in (or paste in) the path to the text file for fitting:"); err != nil {
			return err
		}
	}
	if vocabSize == 0 {
		raw, err := prompt(in, "Type in (or paste in) the vocab size:")
		if err != nil {
			return err
		}
		if vocabSize, err = strconv.Atoi(strings.TrimSpace(raw)); err != nil {
			return fmt.Errorf("vocab size %q is not a number", raw)
		}
	}

	var tok *bpe.Tokenizer
	if pattern != "" {
		if tok, err = bpe.NewWithRegex(pattern); err != nil {
			return err
		}
		fmt.Printf("Regex: %s\n", pattern)
	} else {
		tok = bpe.NewWithSplitBytes(splitLetters)
		fmt.Printf("Split letters: %q\n", splitLetters)
	}

	info, err := os.Stat(corpus)
	if err != nil {
		return err
	}
	fmt.Printf("File path: %s (%s)\nVocab size: %d\n",
		corpus, humanize.Bytes(uint64(info.Size())), vocabSize)

	if !yes {
		answer, err := prompt(in, "Continue(y/N)?")
		if err != nil {
			return err
		}
		if a := strings.TrimSpace(answer); a != "y" && a != "Y" {
			return fmt.Errorf("not continuing")
		}
	}

	bar := progressbar.NewOptions(vocabSize-256,
		progressbar.OptionSetDescription("fitting"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionShowCount(),
	)

	opts := []bpe.FitOption{
		bpe.WithProgress(func(learned, _ int) { bar.Set(learned) }),
	}
	if workers > 0 {
		opts = append(opts, bpe.WithWorkers(workers))
	}
	if bulk {
		opts = append(opts, bpe.WithBulkStrategy())
	}

	start := time.Now()
	effective, err := tok.Fit(vocabSize, corpus, opts...)
	bar.Finish()
	if err != nil {
		return err
	}

	fmt.Printf("Fit %d tokens in %v\n", effective, time.Since(start).Round(time.Millisecond))
	if err := tok.Save(output); err != nil {
		return err
	}
	fmt.Printf("Saved %s\n", output)
	return nil
}

func runEncode(cmd *cobra.Command, _ []string) error {
	modelPath, _ := cmd.Flags().GetString("model")
	tok, err := bpe.Load(modelPath)
	if err != nil {
		return err
	}

	in := bufio.NewReader(cmd.InOrStdin())
	for {
		line, err := prompt(in, "Text:")
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		ids, err := tok.Encode(line)
		if err != nil {
			return err
		}

		for _, id := range ids {
			fmt.Printf("%d ", id)
		}
		fmt.Println()

		parts := make([]string, len(ids))
		for i, id := range ids {
			b, _ := tok.TokenBytes(id)
			parts[i] = strconv.Quote(string(b))
		}
		fmt.Printf("[%s]\n", strings.Join(parts, ", "))

		decoded, err := tok.Decode(ids)
		if err != nil {
			return err
		}
		fmt.Println(decoded)
	}
}

func prompt(in *bufio.Reader, question string) (string, error) {
	fmt.Println(question)
	line, err := in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
