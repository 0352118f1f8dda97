// Package ui renders the one-shot terminal output of the argo and argod
// commands.
//
// Components follow a "run once and exit" pattern: they render styled
// output with Lipgloss but never wait for input, except Confirm.
//
//   - Header: command banner with the command line and its parameters
//   - Progress: step list with a progress bar
//   - Result: success, failure or warning box
//   - RenderServices: one card per discovered service
//   - PayloadBox: raw probe or response body for --verbose
//
// Runner ties them together for multi-step commands:
//
//	runner := ui.NewRunner(ui.RunnerConfig{
//	    Title:   "Probe",
//	    Command: "argo probe --contract urn:example:printer",
//	    Steps:   []string{"Start listener", "Send probe", "Collect responses"},
//	})
//
//	err := runner.Run(func(onStep ui.StepCallback) ([]ui.Param, error) {
//	    onStep(1, ui.StepRunning, "")
//	    // ...
//	    onStep(1, ui.StepComplete, "127.0.0.1:4005")
//	    return []ui.Param{{Key: "Services", Value: "3"}}, nil
//	})
//
// Logging is controlled separately through ARGO_LOG_LEVEL; when unset the
// CLI stays quiet so only this output is shown.
package ui
