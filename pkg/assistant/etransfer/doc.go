// Package etransfer implements the e-Transfer limit assistant.
//
// Every request is checked for eligibility. Only requests that ask for a
// higher limit continue to the adjustment step; plain inquiries end after
// the eligibility explanation.
package etransfer
