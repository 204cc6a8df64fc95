package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"

	"github.com/mvp-joe/smolex/internal/indexer"
)

// CLIProgressReporter implements progress reporting with progress bars.
type CLIProgressReporter struct {
	quiet               bool
	out                 io.Writer
	logger              logrus.FieldLogger
	fileBar             *progressbar.ProgressBar
	embeddingBar        *progressbar.ProgressBar
	processedEmbeddings int
}

// NewCLIProgressReporter creates a new CLI progress reporter drawing to out.
func NewCLIProgressReporter(out io.Writer, logger logrus.FieldLogger, quiet bool) *CLIProgressReporter {
	return &CLIProgressReporter{
		quiet:  quiet,
		out:    out,
		logger: logger,
	}
}

func (c *CLIProgressReporter) newBar(total int, description, its string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(c.out),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString(its),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(c.out)
		}),
	)
}

func (c *CLIProgressReporter) OnDiscoveryStart() {
	if c.quiet {
		return
	}
	c.logger.Info("Discovering files...")
}

func (c *CLIProgressReporter) OnDiscoveryComplete(codeFiles, docFiles int) {
	if c.quiet {
		return
	}
	c.logger.Infof("Processing %d code files and %d documentation files", codeFiles, docFiles)
}

func (c *CLIProgressReporter) OnFileProcessingStart(totalFiles int) {
	if c.quiet || totalFiles == 0 {
		return
	}
	c.fileBar = c.newBar(totalFiles, "Indexing files", "files/s")
}

// OnFileProcessed may be called concurrently; the bar serializes updates.
func (c *CLIProgressReporter) OnFileProcessed(fileName string) {
	if c.quiet {
		return
	}
	if c.fileBar != nil {
		_ = c.fileBar.Add(1)
	}
}

func (c *CLIProgressReporter) OnEmbeddingStart(totalChunks int) {
	if c.quiet || totalChunks == 0 {
		return
	}
	c.processedEmbeddings = 0
	c.embeddingBar = c.newBar(totalChunks, "Generating embeddings", "emb/s")
}

func (c *CLIProgressReporter) OnEmbeddingProgress(processedChunks int) {
	if c.quiet {
		return
	}
	if c.embeddingBar != nil {
		delta := processedChunks - c.processedEmbeddings
		if delta > 0 {
			_ = c.embeddingBar.Add(delta)
			c.processedEmbeddings = processedChunks
		}
	}
}

func (c *CLIProgressReporter) OnComplete(stats *indexer.Stats) {
	if c.quiet {
		return
	}

	fmt.Fprintln(c.out)
	fmt.Fprintf(c.out, "✓ Indexing complete in %.1fs\n", stats.Duration.Seconds())
	fmt.Fprintf(c.out, "  Entities: %s\n", formatNumber(stats.Entities))
	fmt.Fprintf(c.out, "  Chunks:   %s\n", formatNumber(stats.Chunks))
	if len(stats.SkippedFiles) > 0 {
		fmt.Fprintf(c.out, "  Skipped:  %d file(s) with syntax errors\n", len(stats.SkippedFiles))
	}
}

// formatNumber renders n with thousands separators.
func formatNumber(n int) string {
	if n < 1000 && n > -1000 {
		return fmt.Sprintf("%d", n)
	}

	str := fmt.Sprintf("%d", n)
	sign := ""
	if str[0] == '-' {
		sign, str = "-", str[1:]
	}
	var result string
	for i, c := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result += ","
		}
		result += string(c)
	}
	return sign + result
}
