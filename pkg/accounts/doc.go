/*
Package accounts orchestrates access to stored customer accounts.

The Manager serializes every read-modify-write on the same account id with a
reference-counted in-process mutex and, when configured, a distributed lock,
so concurrent contributions or limit changes never lose updates.
*/
package accounts
