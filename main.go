// =============================================================================
// Freight PO Editor - Main Entry Point
// =============================================================================
//
// USAGE:
//   editor-po run          - Stamp PO codes into every waiting CT-e
//   editor-po select       - Choose a PO code by hand for a folder
//   editor-po watch        - Sweep again whenever new items arrive
//   editor-po rules        - Print the PO rule table
//   editor-po config init  - Write a default configuration file
//   editor-po version      - Display the application version
//
// ARCHITECTURE:
//   - cmd/       : CLI command definitions (Cobra)
//   - internal/  : core logic (CT-e handling, rules, pipeline, archives)
//   - pkg/       : shared file utilities
//
// =============================================================================

package main

import (
	"github.com/SideneiSilva/editor-po-barry/cmd"
)

func main() {
	cmd.Execute()
}
