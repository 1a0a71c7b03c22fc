// Package buildinfo reports the version stamped into snapql-server and
// snapql-cli at link time, for -version output, the User-Agent header
// and the startup log line:
//
//	go build -ldflags "-X github.com/yndnr/snapql/internal/infra/buildinfo.Version=v1.0.0 \
//	  -X github.com/yndnr/snapql/internal/infra/buildinfo.Commit=$(git rev-parse --short HEAD)"
//
// GoVersion falls back to the running toolchain when not injected.
package buildinfo
