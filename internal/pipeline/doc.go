// Package pipeline provides a framework for executing rewrite steps in
// sequence.
//
// The pipeline pattern is used to process documents through multiple
// stages: parsing, link rewriting, output writing, and audit persistence.
// Each stage is implemented as a Step that receives the current job and
// can modify it.
//
// Design decision: We use a pipeline pattern instead of direct function
// calls because:
// 1. It allows easy addition/removal of steps without modifying core logic
// 2. It provides consistent error handling and logging across steps
// 3. It supports cancellation via context for long-running batches
//
// The pipeline supports both individual documents and batch processing
// with concurrency control using errgroup.
package pipeline
