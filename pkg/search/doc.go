// Package search looks up current policy documents for the TFSA workflow.
package search
