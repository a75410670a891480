// Package router classifies a free-text banking request and dispatches it
// to the matching workflow in-process.
//
// Classification asks the language model first. When the model fails or
// answers with an unknown label, keyword matching decides, and when no
// keyword matches the configured default service is used.
package router
