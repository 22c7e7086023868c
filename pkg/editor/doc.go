/*
Package editor implements the application state machine of a proofline session.

A Machine owns one domain.State and funnels every mutation through a small set of
named transitions:

  - EditText replaces the draft in any state.
  - Clear drops the draft, the result and the error.
  - StartAnalysis admits at most one outstanding analysis and runs it asynchronously;
    its completion is delivered as AnalysisSucceeded or AnalysisFailed.
  - ApplyCorrection applies one pending issue to the draft.

There is no cancellation: once admitted, an analysis runs until the analyzer returns
(or the optional timeout configured with WithTimeout elapses). Completion events and
lifecycle hooks are emitted in mutation order.
*/
package editor
