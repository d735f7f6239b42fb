package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/xhad/digest/internal/types"
	"github.com/xhad/digest/pkg/exporter"
	"github.com/xhad/digest/pkg/pipeline"
	"github.com/xhad/digest/server"
)

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("segments"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func run(config Config) error {
	p, err := pipeline.NewFromConfig(config.App)
	if err != nil {
		return fmt.Errorf("failed to initialize pipeline: %v", err)
	}
	exp := exporter.NewWithConfig(exporter.ExporterConfig{Title: config.App.Export.Title})

	if config.Serve != "" {
		return server.NewWSServer(p, exp).ListenAndServe(config.Serve)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if config.URL != "" {
		return summarize(ctx, p, exp, config, config.URL)
	}

	color.Cyan("\nSummarize YouTube videos and web pages (type 'exit' to quit)")

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()

	for {
		userPrompt("\nURL: ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if strings.ToLower(input) == "exit" {
			break
		}
		if input == "" {
			continue
		}

		// Errors were already shown; keep the loop going
		_ = summarize(ctx, p, exp, config, input)
		if ctx.Err() != nil {
			break
		}
	}

	return nil
}

func summarize(ctx context.Context, p *pipeline.Pipeline, exp *exporter.Exporter, config Config, url string) error {
	color.Blue("\nStarting summary for %s\n", url)

	spinner := getSpinner(" Fetching content...")
	var bar *progressbar.ProgressBar

	summary, err := p.Run(ctx, url, func(progress pipeline.Progress) {
		switch progress.Stage {
		case pipeline.StageFetch, pipeline.StageChunk:
			spinner.Describe(color.CyanString(" " + progress.Message))
		case pipeline.StageSummarize:
			if bar == nil {
				spinner.Finish()
				fmt.Print("\n")
				bar = getProgressBar(progress.Total, " Summarizing segments")
			}
			if progress.Done > 0 {
				bar.Set(progress.Done)
			}
		case pipeline.StageReduce:
			if bar != nil {
				bar.Finish()
			}
			spinner = getSpinner(" " + progress.Message)
		}
	})
	spinner.Finish()
	fmt.Print("\n")

	if err != nil {
		color.Red("%s\n", types.UserMessage(err))
		return &shownError{err: fmt.Errorf("%s failed: %w", types.KindOf(err), err)}
	}

	color.Green("✓ Summary generated\n")
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()
	assistantPrompt("\n%s\n", summary.Text)

	paths, err := exp.WriteFiles(config.OutputDir, summary)
	for _, path := range paths {
		color.Green("✓ Saved %s\n", path)
	}
	if err != nil {
		color.Yellow("%s\n", types.UserMessage(err))
		return &shownError{err: err}
	}
	return nil
}
