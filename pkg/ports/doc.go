/*
Package ports defines the driven ports (interfaces) of the proofline editor.

These interfaces decouple the state machine from external implementations, allowing
it to work with different text-analysis backends, session stores and lock providers.

# Key Interfaces

  - Generator: sends a prompt plus an output schema to a hosted model and returns raw JSON.
  - Analyzer: turns draft text into a validated domain.AnalysisResult.
  - StateStore: persists session snapshots (memory, Redis).
  - DistributedLocker: coordinates session access across replicas.
  - DocumentStore: imports drafts and exports corrected text.
*/
package ports
