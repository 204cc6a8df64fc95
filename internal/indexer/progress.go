package indexer

// ProgressReporter provides callbacks for reporting refresh progress.
// Implementations can display progress bars, log messages, or remain silent.
type ProgressReporter interface {
	// OnDiscoveryStart is called when file discovery begins.
	OnDiscoveryStart()

	// OnDiscoveryComplete is called when file discovery finishes.
	OnDiscoveryComplete(codeFiles, docFiles int)

	// OnFileProcessingStart is called before files are parsed and chunked.
	OnFileProcessingStart(totalFiles int)

	// OnFileProcessed is called after each file is processed. It may be
	// called from several goroutines at once.
	OnFileProcessed(fileName string)

	// OnEmbeddingStart is called before generating embeddings.
	OnEmbeddingStart(totalChunks int)

	// OnEmbeddingProgress is called after each batch of embeddings.
	OnEmbeddingProgress(processedChunks int)

	// OnComplete is called when the refresh completes successfully.
	OnComplete(stats *Stats)
}

// NoOpProgressReporter is a progress reporter that does nothing.
type NoOpProgressReporter struct{}

func (NoOpProgressReporter) OnDiscoveryStart()                           {}
func (NoOpProgressReporter) OnDiscoveryComplete(codeFiles, docFiles int) {}
func (NoOpProgressReporter) OnFileProcessingStart(totalFiles int)        {}
func (NoOpProgressReporter) OnFileProcessed(fileName string)             {}
func (NoOpProgressReporter) OnEmbeddingStart(totalChunks int)            {}
func (NoOpProgressReporter) OnEmbeddingProgress(processedChunks int)     {}
func (NoOpProgressReporter) OnComplete(stats *Stats)                     {}
