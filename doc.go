/*
Package proofline is an editing session engine for AI-assisted proofreading.

A session holds a draft. The user asks for an analysis, a hosted language model
returns grammar, spelling, punctuation and style issues, and the user applies
them one at a time or exports the fully corrected text. The package wires the
pieces together; the state machine lives in pkg/editor, the service client in
pkg/analysis and the front ends under pkg/adapters and internal/presentation.

# Lifecycle

	Idle --StartAnalysis--> Analyzing --succeeded--> Success
	                                  \--failed----> Failed (previous result kept)

Edits and Clear are accepted in every state. There is no cancellation: once
admitted, an analysis runs to completion (or to the configured timeout).

# Usage

	app, err := proofline.New(proofline.DefaultConfig())
	if err != nil {
		log.Fatal(err)
	}

	mc := app.NewMachine("essay")
	mc.EditText(ctx, "He go to school.")
	if _, err := mc.Analyze(ctx); err != nil {
		log.Println(mc.Snapshot().Error)
	}
*/
package proofline
