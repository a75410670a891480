// Package tfsa implements the TFSA contribution assistant.
//
// The workflow loads the customer profile, asks the language model whether
// the historical rules suffice, optionally searches CRA for the current
// limit, computes the available contribution room and finally executes the
// contribution requested in the user's message.
//
//	profile_agent -> document_agent -> search_agent? -> calculation_agent -> transaction_agent
package tfsa
