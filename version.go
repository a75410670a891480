package teller

// Version is overridden at build time with -ldflags "-X github.com/aretw0/teller.Version=...".
var Version = "dev"
