// Package assistant holds the pieces shared by the banking workflows:
// engine wiring, reply extraction and the Service contract the chat router
// dispatches to.
//
// The workflows themselves live in the tfsa and etransfer subpackages.
package assistant
