// Package google implements the two Google sign-in demos: a desktop flow
// using PKCE with a local callback and a deep link back into the app, and
// a web flow that keeps the session in a signed cookie.
//
// Both flows verify ID tokens through Google's tokeninfo endpoint and
// reject tokens issued to another client.
package google
