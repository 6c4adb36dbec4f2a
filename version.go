package meshwork

// Version is the meshwork release, overridden at build time with
// -ldflags "-X github.com/aretw0/meshwork.Version=...".
var Version = "0.1.0-dev"
