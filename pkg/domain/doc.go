/*
Package domain contains the core data shapes of the proofline editor.

It defines the findings returned by an analysis, the single mutable aggregate that
describes an editing session, and the events emitted when that aggregate changes.
This package is kept pure and free of I/O, following the Hexagonal Architecture of
the rest of the module.

# Key Entities

  - Issue: one flagged span of text with a proposed replacement and rationale.
  - AnalysisResult: the outcome of one request to the text-analysis service.
  - State: the editing session (draft text, analyzing flag, last result, last error).
  - StateDiff: a partial update describing what changed between two States.
*/
package domain
